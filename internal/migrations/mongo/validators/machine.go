package validators

import "go.mongodb.org/mongo-driver/bson"

var MachineValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "name", "type", "status", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id": bson.M{"bsonType": "string", "minLength": 1},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"type": bson.M{
				"bsonType": "string",
				"enum":     []string{"washer", "dryer"},
			},
			"location": bson.M{"bsonType": "string", "maxLength": 100},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"active", "maintenance", "out_of_order"},
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
