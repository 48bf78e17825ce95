// Package payment builds PromptPay payment requests for split shares.
package payment

import (
	"bytes"
	"fmt"

	pp "github.com/Frontware/promptpay"
	"github.com/shopspring/decimal"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
)

// QRCode is a rendered payment request.
type QRCode struct {
	Payload string // EMVCo PromptPay payload encoded in the image
	PNG     []byte
}

// Generator renders payment QR codes made out to one PromptPay account.
type Generator struct {
	promptPayID string
}

// NewGenerator returns a Generator paying promptPayID, a phone number or
// national/tax id.
func NewGenerator(promptPayID string) *Generator {
	return &Generator{promptPayID: promptPayID}
}

// Payload returns the PromptPay payload for amount.
func (g *Generator) Payload(amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("payment amount must be positive, got %s", amount)
	}
	payment := pp.PromptPay{PromptPayID: g.promptPayID, Amount: amount.Round(2).InexactFloat64()}
	qrcodeStr, err := payment.Gen()
	if err != nil {
		return "", fmt.Errorf("error generating PromptPay data: %w", err)
	}
	return qrcodeStr, nil
}

// Generate renders the QR code for amount as a PNG held in memory.
func (g *Generator) Generate(amount decimal.Decimal) (*QRCode, error) {
	qrcodeStr, err := g.Payload(amount)
	if err != nil {
		return nil, err
	}

	qrc, err := qrcode.New(qrcodeStr)
	if err != nil {
		return nil, fmt.Errorf("error creating QR code: %w", err)
	}

	buf := &bufferCloser{}
	w := standard.NewWithWriter(buf, standard.WithBuiltinImageEncoder(standard.PNG_FORMAT))
	if err = qrc.Save(w); err != nil {
		return nil, fmt.Errorf("error saving QR code: %w", err)
	}

	return &QRCode{Payload: qrcodeStr, PNG: buf.Bytes()}, nil
}

type bufferCloser struct {
	bytes.Buffer
}

func (*bufferCloser) Close() error { return nil }
