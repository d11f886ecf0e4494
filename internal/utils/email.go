package utils

import (
	"fmt"
	"log"
	"os"

	"github.com/wneessen/go-mail"

	"pointboard_back_end/internal/models"
)

// SendSettlementEmail confirme au client que son virement a bien été reçu.
// Appelé en goroutine après le règlement, jamais sur le chemin de l'ack.
func SendSettlementEmail(order *models.Order) error {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		log.Println("ℹ️ SMTP non configuré — e-mail de confirmation ignoré")
		return nil
	}

	to := order.Shipping.Email
	if to == "" {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From("noreply@pointboard.vn"); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(fmt.Sprintf("Paiement reçu — commande %s", order.Reference))
	msg.SetBodyString(mail.TypeTextHTML, buildSettlementHTML(order))

	client, err := mail.NewClient(host,
		mail.WithPort(587),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(os.Getenv("SMTP_USERNAME")),
		mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail de confirmation à", to)
	return client.DialAndSend(msg)
}

// buildSettlementHTML génère le HTML de confirmation de paiement
func buildSettlementHTML(order *models.Order) string {
	itemsHTML := ""
	for _, item := range order.Items {
		itemsHTML += fmt.Sprintf(`
			<tr>
				<td>%s</td>
				<td>%d</td>
				<td>%d ₫</td>
				<td>%d ₫</td>
			</tr>`, item.Name, item.Quantity, item.UnitPrice, item.UnitPrice*int64(item.Quantity))
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<title>Paiement reçu</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Votre paiement a bien été reçu</h2>
		<p>Bonjour %s,</p>
		<p>Le virement de votre commande <strong>%s</strong> a été confirmé. Elle part en préparation.</p>

		<h3>Détails de la commande</h3>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Jeu</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Quantité</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Prix unitaire</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>%s</tbody>
		</table>

		<p style="font-size: 18px;"><strong>Total réglé : %d ₫</strong></p>
		<p style="color: #777; font-size: 12px;">PointBoard — boutique de jeux de société</p>
	</div>
</body>
</html>`, order.Shipping.FullName, order.Reference, itemsHTML, order.TotalAmount)
}
