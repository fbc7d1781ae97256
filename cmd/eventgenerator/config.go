package main

type config struct {
	BaseURL  string   `mapstructure:"base_url"`
	Secret   string   `mapstructure:"secret"`
	Names    []string `mapstructure:"names"`
	Group    string   `mapstructure:"group"`
	Source   string   `mapstructure:"source"`
	Interval string   `mapstructure:"interval"`
}
