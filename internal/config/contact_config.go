package config

type Contact struct {
	RatePerHour int `env:"CONTACT_RATE_PER_HOUR" envDefault:"10"`
	Burst       int `env:"CONTACT_BURST" envDefault:"10"`
}

var _ ContactConfig = Contact{}

func (c Contact) GetContactRatePerHour() int {
	return c.RatePerHour
}

func (c Contact) GetContactBurst() int {
	return c.Burst
}
