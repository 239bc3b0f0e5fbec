package site

type Protocol int

const (
	Http Protocol = iota
	Https
)

func (p Protocol) String() string {
	switch p {
	case Https:
		return "https"
	default:
		return "http"
	}
}
