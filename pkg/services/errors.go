package services

import "errors"

// 予測パイプラインのエラー分類
var (
	// ErrDataSourceUnavailable ドキュメントストアに到達できない
	ErrDataSourceUnavailable = errors.New("data source unavailable")
	// ErrEmptyDataset 有効な売上記録が1件もない
	ErrEmptyDataset = errors.New("no sales data available")
	// ErrEntityNotFound 指定された医薬品の記録がない
	ErrEntityNotFound = errors.New("no sales data for medicine")
	// ErrModelFit モデルの学習・予測に失敗
	ErrModelFit = errors.New("model fit failed")
	// ErrInvalidInput リクエストパラメータが不正
	ErrInvalidInput = errors.New("invalid input")
)

// ErrorKind returns a stable label for err, used in logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDataSourceUnavailable):
		return "data_source_unavailable"
	case errors.Is(err, ErrEmptyDataset):
		return "empty_dataset"
	case errors.Is(err, ErrEntityNotFound):
		return "entity_not_found"
	case errors.Is(err, ErrModelFit):
		return "model_fit"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
