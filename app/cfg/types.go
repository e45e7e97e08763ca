package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Application configuration
	SeedDir         string
	Port            string
	APIAccessKey    string
	IngestInterval  int
	PublishInterval int

	// Content generation
	GenerateURL     string
	GenerateKey     string
	GenerateTimeout int

	// Publishing transport
	BotToken string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
