package lib

import (
	"fmt"
	"os"
	"path"

	"github.com/yeqown/go-qrcode"
)

// GenerateVoucherQR writes a QR image carrying the voucher code and
// returns the local file path.
func GenerateVoucherQR(code string) (string, error) {
	qrc, err := qrcode.New(code)
	if err != nil {
		return "", err
	}
	tempdir := os.Getenv("TEMP_DIR")
	filepath := path.Join(tempdir, fmt.Sprintf("voucher_%s.jpeg", code))
	if err := qrc.Save(filepath); err != nil {
		return "", err
	}
	return filepath, nil
}
