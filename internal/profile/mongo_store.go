package profile

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding profile documents.
const CollectionName = "users"

// MongoStore keeps profiles in a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(CollectionName)}
}

func (s *MongoStore) Create(ctx context.Context, p Profile) error {
	if _, err := s.collection.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrProfileExists
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (Profile, error) {
	var p Profile
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func (s *MongoStore) Update(ctx context.Context, id string, patch Patch) (Profile, error) {
	set := patchDocument(patch)
	if len(set) == 0 {
		return s.Get(ctx, id)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p Profile
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

func (s *MongoStore) Upsert(ctx context.Context, seed Profile, patch Patch) (Profile, error) {
	set := patchDocument(patch)
	onInsert := insertDocument(seed)
	// A path may appear in only one update operator.
	for field := range set {
		delete(onInsert, field)
	}
	update := bson.M{"$setOnInsert": onInsert}
	if len(set) > 0 {
		update["$set"] = set
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var p Profile
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": seed.ID}, update, opts).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}

func (s *MongoStore) CreateIfAbsent(ctx context.Context, p Profile) (bool, error) {
	opts := options.Update().SetUpsert(true)
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$setOnInsert": insertDocument(p)}, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("upsert profile: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

// insertDocument is p without its _id, which the upsert filter supplies.
func insertDocument(p Profile) bson.M {
	doc := bson.M{
		"email":         p.Email,
		"firstName":     p.FirstName,
		"lastName":      p.LastName,
		"phoneNumber":   p.PhoneNumber,
		"address":       p.Address,
		"createdAt":     p.CreatedAt,
		"emailVerified": p.EmailVerified,
	}
	if p.DisplayName != "" {
		doc["displayName"] = p.DisplayName
	}
	if p.PhotoURL != "" {
		doc["photoURL"] = p.PhotoURL
	}
	if p.Provider != "" {
		doc["provider"] = p.Provider
	}
	return doc
}

func patchDocument(p Patch) bson.M {
	set := bson.M{}
	if p.FirstName != nil {
		set["firstName"] = *p.FirstName
	}
	if p.LastName != nil {
		set["lastName"] = *p.LastName
	}
	if p.PhoneNumber != nil {
		set["phoneNumber"] = *p.PhoneNumber
	}
	if p.Address != nil {
		set["address"] = *p.Address
	}
	if p.EmailVerified != nil {
		set["emailVerified"] = *p.EmailVerified
	}
	return set
}
