// Package payment builds UPI payment links and QR codes for manual plan purchases.
package payment

import (
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// UPI identifies the payee.
type UPI struct {
	VPA       string
	PayeeName string
}

// URI returns the upi://pay deep link for amount rupees.
func (u UPI) URI(amount int, note string) (string, error) {
	if strings.TrimSpace(u.VPA) == "" {
		return "", fmt.Errorf("upi id not configured")
	}
	if amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}
	q := url.Values{}
	q.Set("pa", u.VPA)
	if u.PayeeName != "" {
		q.Set("pn", u.PayeeName)
	}
	q.Set("am", fmt.Sprintf("%d.00", amount))
	q.Set("cu", "INR")
	if note != "" {
		q.Set("tn", note)
	}
	return "upi://pay?" + q.Encode(), nil
}

// QR renders the payment link as a PNG.
func (u UPI) QR(amount int, note string) ([]byte, error) {
	uri, err := u.URI(amount, note)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(uri, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
