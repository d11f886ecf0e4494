package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/minio/minio-go/v7"

	"pointboard_back_end/internal/database"
)

// ArchiveWebhookPayload archive le corps brut d'un appel webhook dans le
// bucket d'audit. Best-effort : le journal Scylla garde de toute façon le
// payload, MinIO sert à la conservation longue durée.
func ArchiveWebhookPayload(txnID string, payload []byte) {
	if database.MinIO == nil {
		return
	}

	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "webhook-payloads"
	}

	objectName := fmt.Sprintf("sepay/%s/%s.json", time.Now().Format("2006-01-02"), txnID)

	_, err := database.MinIO.PutObject(context.Background(), bucket, objectName,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		log.Println("⚠️ Archivage MinIO échoué:", err)
		return
	}

	log.Printf("🪣 Payload archivé : %s/%s", bucket, objectName)
}
