package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Note is an administrator's remark on an issue
type Note struct {
	ID        string    `bson:"_id" json:"id"`
	IssueID   string    `bson:"issue" json:"issueId"`
	Author    string    `bson:"author" json:"author"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// EnsureNoteIndex creates the (issue, createdAt) index notes are listed by
func EnsureNoteIndex(collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "issue", Value: 1}, {Key: "createdAt", Value: 1}},
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// EnsureUserIndex makes email unique across accounts
func EnsureUserIndex(collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	_, err := collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// EnsureIssueIndexes covers the reporter and dashboard listing queries
func EnsureIssueIndexes(collection *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reporterId", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}}},
	})
	return err
}
