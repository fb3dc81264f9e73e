package source

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Data-quality warning kinds.
const (
	warnDuplicateRank     = "duplicate_rank"
	warnRankOutOfRange    = "rank_out_of_range"
	warnAffiliationChange = "affiliation_conflict"
	warnDuplicateVoter    = "duplicate_voter"
)

var dataQualityWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pollc_data_quality_warnings_total",
	Help: "Rows that were overwritten, skipped or conflicted while building ballots.",
}, []string{"kind"})

// qualityReporter logs and counts non-fatal data problems.
type qualityReporter struct {
	logger *zap.Logger
}

func (q qualityReporter) warn(kind, msg string, fields ...zap.Field) {
	dataQualityWarnings.WithLabelValues(kind).Inc()
	q.logger.Warn(msg, append(fields, zap.String("kind", kind))...)
}
