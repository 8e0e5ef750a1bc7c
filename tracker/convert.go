package tracker

import "github.com/swdee/go-tracklet/postprocess"

// DetectionsToPredictions takes postprocess object detection results and
// converts them into tracker predictions, each carrying its detection class
// as the only candidate
func DetectionsToPredictions(dets []postprocess.DetectResult) []Prediction {

	preds := make([]Prediction, 0, len(dets))

	for _, det := range dets {
		preds = append(preds, Prediction{
			Position: det.Position(),
			Candidates: []ClassScore{
				{Class: det.Class, Score: det.Probability},
			},
			Class:    det.Class,
			HasClass: true,
		})
	}

	return preds
}
