package qr

import (
	"encoding/base64"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 256

// PermitURL builds the frontend viewPermit link that the QR encodes. The
// token travels as a query parameter so the frontend route stays
// redirectable.
func PermitURL(frontendBase, token string) string {
	base := strings.TrimRight(frontendBase, "/")
	return base + "/viewPermit/?token=" + url.QueryEscape(token)
}

// DataURL renders the given URL as a PNG matrix barcode, returned as a
// data: URL ready for an <img> tag.
func DataURL(value string) (string, error) {
	png, err := qrcode.Encode(value, qrcode.Medium, imageSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
