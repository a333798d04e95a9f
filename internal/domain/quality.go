package domain

import "time"

type Quality string

const (
	QualityUnknown   Quality = ""
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// GradeQuality переводит RTT выбранной пары кандидатов и долю потерь входящего RTP в оценку
func GradeQuality(rtt time.Duration, loss float64) Quality {
	switch {
	case loss >= 0.10 || rtt >= 500*time.Millisecond:
		return QualityPoor
	case loss >= 0.05 || rtt >= 300*time.Millisecond:
		return QualityFair
	case loss >= 0.02 || rtt >= 150*time.Millisecond:
		return QualityGood
	default:
		return QualityExcellent
	}
}

// Score - числовое значение для метрик, 0 если оценки ещё нет
func (q Quality) Score() int {
	switch q {
	case QualityExcellent:
		return 4
	case QualityGood:
		return 3
	case QualityFair:
		return 2
	case QualityPoor:
		return 1
	default:
		return 0
	}
}
