package payref

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// DefaultPrefix : jeton littéral placé devant la référence dans le libellé
// de virement. Les banques réécrivent parfois le libellé (majuscules,
// séparateur supprimé), d'où le Parse tolérant ci-dessous.
const DefaultPrefix = "PointBoard-"

// MemoFormat est l'unique source de vérité du contrat libellé ↔ référence :
// le QR encode Format(), le webhook décode avec Parse(). Les deux ne peuvent
// pas diverger puisqu'ils partagent le même préfixe.
type MemoFormat struct {
	Prefix string
}

func Default() MemoFormat {
	prefix := os.Getenv("PAYMENT_MEMO_PREFIX")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return MemoFormat{Prefix: prefix}
}

// Format construit le libellé attendu dans le virement
func (f MemoFormat) Format(reference string) string {
	return f.Prefix + reference
}

// Parse extrait la référence de commande d'un libellé bancaire libre.
// Insensible à la casse, séparateur final du préfixe optionnel.
func (f MemoFormat) Parse(content string) (string, bool) {
	match := f.pattern().FindStringSubmatch(content)
	if match == nil {
		return "", false
	}
	return strings.ToUpper(match[1]), true
}

func (f MemoFormat) pattern() *regexp.Regexp {
	base := strings.TrimRight(f.Prefix, "-_ ")
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(base) + `[-_ ]?([A-Za-z0-9]+)`)
}

// NewReference génère une référence de commande courte et lisible,
// à recopier telle quelle dans le libellé de virement
func NewReference() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:10])
}

// QuickLinkURL construit l'URL VietQR déterministe (montant arrondi en VND
// entiers + libellé) que le front affiche en image
func QuickLinkURL(amount int64, memo string) string {
	bankCode := os.Getenv("BANK_CODE")
	accountNumber := os.Getenv("BANK_ACCOUNT_NUMBER")
	accountName := os.Getenv("BANK_ACCOUNT_NAME")

	params := url.Values{}
	params.Set("amount", fmt.Sprintf("%d", amount))
	params.Set("addInfo", memo)
	if accountName != "" {
		params.Set("accountName", accountName)
	}

	return fmt.Sprintf("https://img.vietqr.io/image/%s-%s-compact2.png?%s",
		bankCode, accountNumber, params.Encode())
}

// QRPNG encode l'URL de paiement en QR PNG 256x256
func QRPNG(amount int64, memo string) ([]byte, error) {
	return qrcode.Encode(QuickLinkURL(amount, memo), qrcode.Medium, 256)
}

// QRPNGBase64 retourne le QR prêt à mettre dans un <img src="...">
func QRPNGBase64(amount int64, memo string) (string, error) {
	png, err := QRPNG(amount, memo)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
