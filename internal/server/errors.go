package server

// Operation names, shared with the CLI.
const (
	OpDetectTypes  = "detect-types"
	OpProfile      = "profile"
	OpAnomalies    = "anomalies"
	OpTrend        = "trend"
	OpCorrelations = "correlations"
	OpInsights     = "insights"
	OpCharts       = "charts"
	OpAnalyze      = "analyze"
)

// Echo is the request context repeated in error documents.
type Echo struct {
	DatasetID string
	Column    string
	UserID    string
}

// ErrorDocument builds the failure document for op: the message, the echoed
// context and the op's result arrays left empty.
func ErrorDocument(op string, e Echo, err error) map[string]any {
	doc := map[string]any{"error": err.Error()}
	switch op {
	case OpDetectTypes:
		doc["dataset_id"] = e.DatasetID
		doc["total_columns"] = 0
		doc["columns"] = map[string]any{}
	case OpProfile:
		doc["dataset_id"] = e.DatasetID
		doc["columns"] = map[string]any{}
	case OpAnomalies:
		doc["dataset_id"] = e.DatasetID
		doc["column"] = e.Column
		doc["anomalies"] = []any{}
	case OpTrend:
		doc["dataset_id"] = e.DatasetID
		doc["column"] = e.Column
		doc["changepoints"] = []any{}
		doc["prediction_next_3"] = []any{}
	case OpCorrelations:
		doc["dataset_id"] = e.DatasetID
		doc["correlations"] = []any{}
		doc["numeric_columns"] = []any{}
	case OpInsights:
		doc["dataset_id"] = e.DatasetID
		if e.UserID != "" {
			doc["user_id"] = e.UserID
		}
		doc["total_insights"] = 0
		doc["insights"] = []any{}
	case OpCharts:
		doc["dataset_id"] = e.DatasetID
		doc["recommendations"] = []any{}
	case OpAnalyze:
		doc["dataset_id"] = e.DatasetID
		doc["anomalies"] = []any{}
		doc["trends"] = []any{}
		doc["insights"] = []any{}
		doc["skipped"] = []any{}
	}
	return doc
}
