package validators

import "go.mongodb.org/mongo-driver/bson"

const clockPattern = `^([01]\d|2[0-3]):[0-5]\d$`

var slotSchema = bson.M{
	"bsonType": "object",
	"required": []string{"start_time", "end_time", "booked"},
	"properties": bson.M{
		"start_time": bson.M{"bsonType": "string", "pattern": clockPattern},
		"end_time":   bson.M{"bsonType": "string", "pattern": clockPattern},
		"booked":     bson.M{"bsonType": "bool"},
	},
}

var daySchema = bson.M{
	"bsonType": "array",
	"maxItems": 96,
	"items":    slotSchema,
}

var ProfessionalValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"availability"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id": bson.M{"bsonType": "string", "minLength": 24, "maxLength": 24},
			"availability": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"sunday":    daySchema,
					"monday":    daySchema,
					"tuesday":   daySchema,
					"wednesday": daySchema,
					"thursday":  daySchema,
					"friday":    daySchema,
					"saturday":  daySchema,
				},
			},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
