package config

// ChannelSeed represents a complete channel registration file
type ChannelSeed struct {
	Channel ChannelInfo  `yaml:"channel"`
	Sources []SourceInfo `yaml:"sources"`
}

// ChannelInfo contains the channel destination and publishing settings
type ChannelInfo struct {
	ChatID         string `yaml:"chat_id"`
	Name           string `yaml:"name"`
	Topic          string `yaml:"topic"`
	PostInterval   int    `yaml:"post_interval"`
	Model          string `yaml:"model"`
	Prompt         string `yaml:"prompt"`
	ModerationMode bool   `yaml:"moderation_mode"`
}

// SourceInfo contains one feed binding
type SourceInfo struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}
