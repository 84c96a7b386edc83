package bus

import "time"

type ServerConfig struct {
	Addr              string        `help:"Bus server listen address" default:":3245" env:"PSXPAD_BUS_ADDR"`
	AckTimeout        time.Duration `help:"How long a master waits for the controller to acknowledge a byte" default:"2ms" env:"PSXPAD_BUS_ACK_TIMEOUT"`
	SelectTimeout     time.Duration `help:"How long a master waits for the controller to clock the first byte" default:"50ms" env:"PSXPAD_BUS_SELECT_TIMEOUT"`
	ConnectionTimeout time.Duration `kong:"-"`
}
