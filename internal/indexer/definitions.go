package indexer

import (
	"khoomi-api-io/checkout/internal/common"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CheckoutIndexes are the indexes the order draft store relies on: one
// draft per order, lookup by session, and expiry at expires_at.
func CheckoutIndexes() []IndexDefinition {
	return []IndexDefinition{
		{
			Collection: common.ORDER_DRAFT_COLLECTION,
			Index: mongo.IndexModel{
				Keys:    bson.D{{Key: "order_id", Value: 1}},
				Options: options.Index().SetName("order_id_unique").SetUnique(true),
			},
		},
		{
			Collection: common.ORDER_DRAFT_COLLECTION,
			Index: mongo.IndexModel{
				Keys:    bson.D{{Key: "session", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("session_created_at"),
			},
		},
		{
			Collection: common.ORDER_DRAFT_COLLECTION,
			Index: mongo.IndexModel{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetName("expires_at_ttl").SetExpireAfterSeconds(0),
			},
		},
	}
}
