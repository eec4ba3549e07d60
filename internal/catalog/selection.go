package catalog

import "github.com/robertarktes/rail-booking/internal/domain"

type Selection struct {
	TrainKey string `json:"trainKey,omitempty"`
	ClassID  string `json:"classId,omitempty"`
}

func (s Selection) IsZero() bool {
	return s.TrainKey == ""
}

// NextSelection is the selection transition:
//
//	(T, "") with T not selected -> (T, first class of T)
//	(T, "") with T selected     -> none
//	(T, C)                      -> (T, C)
func NextSelection(cur Selection, train domain.Train, classID string) (Selection, error) {
	if classID == "" {
		if cur.TrainKey == train.Key {
			return Selection{}, nil
		}
		if len(train.Classes) == 0 {
			ve := domain.NewValidationError("search", "train has no fare classes")
			ve.Add("selection", "classId")
			return cur, ve
		}
		return Selection{TrainKey: train.Key, ClassID: train.Classes[0].ID}, nil
	}
	if _, _, ok := train.Class(classID); !ok {
		ve := domain.NewValidationError("search", "unknown fare class")
		ve.Add("selection", "classId")
		return cur, ve
	}
	return Selection{TrainKey: train.Key, ClassID: classID}, nil
}
