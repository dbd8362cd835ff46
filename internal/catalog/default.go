package catalog

import (
	"time"

	"github.com/xela07ax/agentflow-prototype/internal/domain"
)

// Имена полей World State встроенного медиа-пайплайна.
// Схема фиксирована: предикаты каталога и есть источник истины о полях.
const (
	FieldUploadValidated   = "upload_validated"
	FieldImageClassified   = "image_classified"
	FieldConfidenceScore   = "confidence_score"
	FieldLowConfidence     = "low_confidence"
	FieldReviewCompleted   = "review_completed"
	FieldAssetEncrypted    = "asset_encrypted"
	FieldSimilarityIndexed = "similarity_indexed"
	FieldUserNotified      = "user_notified"
	FieldHighPrecision     = "high_precision"
	FieldCalibrated        = "calibrated"
)

// LowConfidenceThreshold — числовой порог, из которого выводится флаг
// low_confidence. Та же константа питает правила консистентности в handoff.
const LowConfidenceThreshold = 0.75

// Default собирает встроенный каталог медиа-пайплайна:
// валидация загрузки -> классификация -> ветка ревью (взаимоисключающая по
// low_confidence) -> шифрование -> индексация -> нотификация.
// Агент calibrator намеренно представлен двумя действиями с
// взаимоисключающими предусловиями: планировщик обязан выбирать достижимое
// и более дешевое, не зная имен.
func Default() *Catalog {
	return &Catalog{
		Actions: []domain.Action{
			{
				Name:    "validate_upload",
				AgentID: "validator",
				Cost:    1,
				Effects: domain.State{FieldUploadValidated: domain.BoolValue(true)},
			},
			{
				Name:          "classify_image",
				AgentID:       "classifier",
				Cost:          2,
				Preconditions: domain.State{FieldUploadValidated: domain.BoolValue(true)},
				Effects:       domain.State{FieldImageClassified: domain.BoolValue(true)},
			},
			{
				Name:    "human_review",
				AgentID: "reviewer",
				Cost:    5,
				Preconditions: domain.State{
					FieldImageClassified: domain.BoolValue(true),
					FieldLowConfidence:   domain.BoolValue(true),
				},
				Effects: domain.State{FieldReviewCompleted: domain.BoolValue(true)},
			},
			{
				Name:    "auto_accept",
				AgentID: "auto_accepter",
				Cost:    1,
				Preconditions: domain.State{
					FieldImageClassified: domain.BoolValue(true),
					FieldLowConfidence:   domain.BoolValue(false),
				},
				Effects: domain.State{FieldReviewCompleted: domain.BoolValue(true)},
			},
			{
				Name:          "encrypt_asset",
				AgentID:       "encryptor",
				Cost:          2,
				Preconditions: domain.State{FieldReviewCompleted: domain.BoolValue(true)},
				Effects:       domain.State{FieldAssetEncrypted: domain.BoolValue(true)},
			},
			{
				Name:          "index_similarity",
				AgentID:       "indexer",
				Cost:          2,
				Preconditions: domain.State{FieldAssetEncrypted: domain.BoolValue(true)},
				Effects:       domain.State{FieldSimilarityIndexed: domain.BoolValue(true)},
			},
			{
				Name:          "notify_user",
				AgentID:       "notifier",
				Cost:          1,
				Preconditions: domain.State{FieldAssetEncrypted: domain.BoolValue(true)},
				Effects:       domain.State{FieldUserNotified: domain.BoolValue(true)},
			},
			{
				Name:          "calibrate_fast",
				AgentID:       "calibrator",
				Cost:          1,
				Preconditions: domain.State{FieldHighPrecision: domain.BoolValue(false)},
				Effects:       domain.State{FieldCalibrated: domain.BoolValue(true)},
			},
			{
				Name:          "calibrate_precise",
				AgentID:       "calibrator",
				Cost:          3,
				Preconditions: domain.State{FieldHighPrecision: domain.BoolValue(true)},
				Effects:       domain.State{FieldCalibrated: domain.BoolValue(true)},
			},
		},
		Strategies: map[string]domain.RecoveryStrategy{
			"validator": {
				Critical: true,
				Retry:    true, MaxRetries: 2, RetryDelay: 200 * time.Millisecond,
			},
			"classifier": {
				Critical: true,
				Retry:    true, MaxRetries: 3, RetryDelay: 500 * time.Millisecond,
			},
			"encryptor": {Critical: true},
			"reviewer":  {Retry: true, MaxRetries: 1, RetryDelay: time.Second},
			"indexer":   {Retry: true, MaxRetries: 2, RetryDelay: 300 * time.Millisecond},
			// Нотификация не критична: пайплайн завершается и без нее.
			"notifier": {},
		},
	}
}
