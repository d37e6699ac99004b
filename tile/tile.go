/*
Package tile implements the encoding used for individual puzzle tiles.

Each tile is a PNG image carried as a self-contained data URI so that it can
be stored and displayed without any further context. Tiles may optionally be
reduced to a smaller palette before encoding which makes the stored record
considerably smaller for photographic sources.
*/
package tile

const (
	// MIMEType is the media type of every encoded tile
	MIMEType = "image/png"

	prefix = "data:" + MIMEType + ";base64,"

	// MaxColors is the largest palette a tile can be reduced to
	MaxColors = 256
)
