package link

import "time"

const (
	TypeSerial = "serial"
	TypeTCP    = "tcp"
)

type Config struct {
	Type        string        `help:"Host link transport: serial or tcp" default:"serial" enum:"serial,tcp" env:"PSXPAD_LINK_TYPE"`
	Device      string        `help:"Serial device carrying host link frames" default:"/dev/ttyACM0" env:"PSXPAD_LINK_DEVICE"`
	Baud        int           `help:"Serial baud rate" default:"38400" env:"PSXPAD_LINK_BAUD"`
	Addr        string        `help:"Listen address for companions when type is tcp" default:":3246" env:"PSXPAD_LINK_ADDR"`
	ReadTimeout time.Duration `help:"Serial read timeout; bounds how long shutdown waits for the reader" default:"100ms" env:"PSXPAD_LINK_READ_TIMEOUT"`
	QueueSize   int           `kong:"-"`
}

const defaultQueueSize = 256
