package validators

import "go.mongodb.org/mongo-driver/bson"

var slotRefSchema = bson.M{
	"bsonType": "object",
	"required": []string{"start_time", "end_time"},
	"properties": bson.M{
		"start_time": bson.M{"bsonType": "string", "pattern": clockPattern},
		"end_time":   bson.M{"bsonType": "string", "pattern": clockPattern},
	},
}

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"pro_id",
			"user_id",
			"preferred_date",
			"preferred_time",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"pro_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"preferred_date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"preferred_time": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"maxItems": 48,
				"items":    slotRefSchema,
			},

			"status": bson.M{
				"enum": []string{"pending", "accepted", "rejected", "completed", "cancelled"},
			},

			"slot_release_at": bson.M{
				"bsonType": "date",
			},

			"slot_release_job_id": bson.M{
				"bsonType": []string{"string", "null"},
			},

			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
