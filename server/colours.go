package server

// ANSI colours for the route table printed in DEV.
const (
	colourGet   = "\033[32m"
	colourPost  = "\033[34m"
	colourOther = "\033[90m"
	colourReset = "\033[0m"
)

var methodColors = map[string]string{
	"GET":  colourGet,
	"POST": colourPost,
}
