package ui

// Config contains rendering settings read from the environment.
type Config struct {
	GlamourStyle    string `env:"GLAMOUR_STYLE" envDefault:"auto"`
	GlamourMaxWidth uint   `env:"DICTATE_WIDTH"`
	GlamourEnabled  bool   `env:"DICTATE_ENABLE_GLAMOUR" envDefault:"true"`
}
