package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"pointboard_back_end/internal/models"
)

var (
	// ErrPollTimeout : le plafond est atteint sans règlement confirmé.
	// Côté front : "impossible de vérifier le paiement, contactez le support"
	ErrPollTimeout = errors.New("délai de vérification du paiement dépassé")

	// ErrPaymentRejected : statut terminal failed/refunded
	ErrPaymentRejected = errors.New("paiement refusé")
)

type Config struct {
	BaseURL  string
	Interval time.Duration // défaut 2s
	Ceiling  time.Duration // défaut 3h
}

// Poller interroge le backend jusqu'à confirmation du virement. Long-poll
// assumé : il n'existe pas de canal push entre la passerelle et le client.
// La boucle est annulable par contexte (fermeture de la page de checkout).
type Poller struct {
	client *resty.Client
	cfg    Config
}

type statusAnswer struct {
	PaymentState    models.PaymentState `json:"payment_state"`
	PaymentVerified bool                `json:"payment_verified"`
	TransferAmount  int64               `json:"transfer_amount"`
}

func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = 3 * time.Hour
	}
	return &Poller{
		client: resty.New(),
		cfg:    cfg,
	}
}

// Wait bloque jusqu'à ce que la commande soit réglée pour le montant
// attendu. Un montant différent sur une réponse "paid" est traité comme
// pas-encore-réglé et resondé, pas rejeté.
func (p *Poller) Wait(ctx context.Context, reference string, expectedAmount int64) error {
	deadline := time.Now().Add(p.cfg.Ceiling)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		answer, err := p.check(ctx, reference)
		if err == nil {
			switch answer.PaymentState {
			case models.PaymentPaid:
				if answer.TransferAmount == expectedAmount {
					return nil
				}
				// montant différent : on continue d'attendre
			case models.PaymentFailed, models.PaymentRefunded:
				return ErrPaymentRejected
			}
		}
		// erreur réseau ou statut non terminal : nouvelle tentative

		if time.Now().After(deadline) {
			return ErrPollTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) check(ctx context.Context, reference string) (statusAnswer, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		Get(p.cfg.BaseURL + "/api/orders/" + reference + "/payment-status")
	if err != nil {
		return statusAnswer{}, err
	}

	if resp.StatusCode() != http.StatusOK {
		return statusAnswer{}, errors.New("statut HTTP inattendu: " + resp.Status())
	}

	var answer statusAnswer
	if err := json.Unmarshal(resp.Body(), &answer); err != nil {
		return statusAnswer{}, err
	}
	return answer, nil
}
