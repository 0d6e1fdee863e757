package repository

import (
	"fmt"

	"proslots/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

const availabilityField = "availability"

func dayPath(day model.Weekday) string {
	return availabilityField + "." + day.Key()
}

// reserveFilter matches the professional only if every requested slot is
// present on the day and still free.
func reserveFilter(proID string, day model.Weekday, refs []model.SlotRef) bson.M {
	conds := make(bson.A, 0, len(refs))
	for _, ref := range refs {
		conds = append(conds, bson.M{
			"$elemMatch": bson.M{
				"start_time": ref.StartTime,
				"end_time":   ref.EndTime,
				"booked":     false,
			},
		})
	}
	return bson.M{
		"_id":        proID,
		dayPath(day): bson.M{"$all": conds},
	}
}

// slotUpdate sets booked on exactly the referenced entries of the day. Only
// entries currently in the opposite state are touched.
func slotUpdate(day model.Weekday, refs []model.SlotRef, booked bool) (bson.M, []interface{}) {
	set := bson.M{}
	filters := make([]interface{}, 0, len(refs))
	for i, ref := range refs {
		id := fmt.Sprintf("s%d", i)
		set[fmt.Sprintf("%s.$[%s].booked", dayPath(day), id)] = booked
		filters = append(filters, bson.M{
			id + ".start_time": ref.StartTime,
			id + ".end_time":   ref.EndTime,
			id + ".booked":     !booked,
		})
	}
	return set, filters
}

func releaseFilter(proID string, day model.Weekday) bson.M {
	return bson.M{
		"_id":        proID,
		dayPath(day): bson.M{"$type": "array"},
	}
}

// initDayFilter guards first-time initialization of a day.
func initDayFilter(proID string, day model.Weekday) bson.M {
	return bson.M{
		"_id":        proID,
		dayPath(day): bson.M{"$exists": false},
	}
}

// replaceDayFilter matches when the day is absent or has no booked slot.
func replaceDayFilter(proID string, day model.Weekday) bson.M {
	return bson.M{
		"_id": proID,
		dayPath(day): bson.M{
			"$not": bson.M{"$elemMatch": bson.M{"booked": true}},
		},
	}
}
