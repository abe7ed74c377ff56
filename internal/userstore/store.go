// Package userstore persists user profiles, preferences and event records
// in MongoDB. The store degrades to a mock mode when MongoDB is not
// configured or unreachable: reads return synthetic defaults and writes
// are logged instead of persisted, so the main RAG surface keeps working.
package userstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrNotFound is returned for lookups of unknown users.
var ErrNotFound = errors.New("user not found")

// Profile is a user profile as served over the API.
type Profile struct {
	ID                 string `json:"id" bson:"-"`
	Name               string `json:"name" bson:"name"`
	Email              string `json:"email" bson:"email"`
	SoftwareExperience string `json:"softwareExperience" bson:"softwareExperience,omitempty"`
	HardwareExperience string `json:"hardwareExperience" bson:"hardwareExperience,omitempty"`
	RoboticsBackground string `json:"roboticsBackground" bson:"roboticsBackground,omitempty"`
	LearningGoals      string `json:"learningGoals" bson:"learningGoals,omitempty"`
	PreferredLanguage  string `json:"preferredLanguage" bson:"preferredLanguage,omitempty"`
	CreatedAt          string `json:"createdAt" bson:"createdAt,omitempty"`
	LastActive         string `json:"lastActive" bson:"lastActive,omitempty"`
}

// Background is the self-reported experience a user submits once.
type Background struct {
	UserID             string `json:"userId"`
	SoftwareExperience string `json:"softwareExperience"`
	HardwareExperience string `json:"hardwareExperience"`
	RoboticsBackground string `json:"roboticsBackground"`
	LearningGoals      string `json:"learningGoals"`
	PreferredLanguage  string `json:"preferredLanguage"`
}

// ContentPreferences control how content is presented to a user.
type ContentPreferences struct {
	DifficultyLevel  string `json:"difficultyLevel" bson:"difficultyLevel"`
	ExplanationStyle string `json:"explanationStyle" bson:"explanationStyle"`
	ContentFormat    string `json:"contentFormat" bson:"contentFormat"`
	Language         string `json:"language" bson:"language"`
}

// DefaultContentPreferences are served when nothing is stored for a
// content id.
func DefaultContentPreferences() ContentPreferences {
	return ContentPreferences{
		DifficultyLevel:  "medium",
		ExplanationStyle: "detailed",
		ContentFormat:    "text",
		Language:         "english",
	}
}

// MockProfile is the synthetic profile served in mock mode.
func MockProfile(userID string) Profile {
	now := time.Now().UTC().Format(time.RFC3339)
	return Profile{
		ID:                 userID,
		Name:               "Guest User",
		Email:              "guest@example.com",
		SoftwareExperience: "beginner",
		HardwareExperience: "none",
		RoboticsBackground: "none",
		LearningGoals:      "Learn robotics",
		PreferredLanguage:  "english",
		CreatedAt:          now,
		LastActive:         now,
	}
}

// Store wraps the MongoDB collections. A nil db means mock mode.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *slog.Logger
}

// New connects to MongoDB. Connection problems never fail construction:
// the store comes up in mock mode instead.
func New(ctx context.Context, url, database string, log *slog.Logger) *Store {
	s := &Store{log: log}
	if url == "" || database == "" {
		log.Info("mongodb not configured, user store in mock mode")
		return s
	}

	client, err := mongo.Connect(options.Client().ApplyURI(url))
	if err != nil {
		log.Warn("mongodb connect failed, user store in mock mode", "error", err)
		return s
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		log.Warn("mongodb unreachable, user store in mock mode", "error", err)
		_ = client.Disconnect(context.Background())
		return s
	}

	log.Info("connected to mongodb", "database", database)
	s.client = client
	s.db = client.Database(database)
	return s
}

// Available reports whether the store is backed by a live database.
func (s *Store) Available() bool { return s.db != nil }

// GetProfile looks up a user by hex ObjectID.
func (s *Store) GetProfile(ctx context.Context, userID string) (Profile, error) {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return Profile{}, ErrNotFound
	}

	var p Profile
	err = s.db.Collection("users").FindOne(ctx, bson.M{"_id": oid}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("find user: %w", err)
	}

	p.ID = userID
	if p.PreferredLanguage == "" {
		p.PreferredLanguage = "english"
	}
	if p.LastActive == "" {
		p.LastActive = time.Now().UTC().Format(time.RFC3339)
	}
	return p, nil
}

// UpdatePreferences replaces a user's preference document.
func (s *Store) UpdatePreferences(ctx context.Context, userID string, preferences map[string]any) error {
	oid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.db.Collection("users").UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"preferences": preferences,
			"lastUpdated": time.Now().UTC().Format(time.RFC3339),
		}},
	)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveBackground stores a user's experience and goals on their profile.
func (s *Store) SaveBackground(ctx context.Context, b Background) error {
	oid, err := bson.ObjectIDFromHex(b.UserID)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.db.Collection("users").UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"softwareExperience": b.SoftwareExperience,
			"hardwareExperience": b.HardwareExperience,
			"roboticsBackground": b.RoboticsBackground,
			"learningGoals":      b.LearningGoals,
			"preferredLanguage":  b.PreferredLanguage,
		}},
	)
	if err != nil {
		return fmt.Errorf("save background: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetContentPreferences returns the stored preferences for a content id,
// falling back to the defaults.
func (s *Store) GetContentPreferences(ctx context.Context, contentID string) (ContentPreferences, error) {
	var doc struct {
		Preferences ContentPreferences `bson:"preferences"`
	}
	err := s.db.Collection("preferences").FindOne(ctx, bson.M{"contentId": contentID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return DefaultContentPreferences(), nil
	}
	if err != nil {
		return ContentPreferences{}, fmt.Errorf("find preferences: %w", err)
	}
	return doc.Preferences, nil
}

// SaveContentPreferences upserts preferences for a content id.
func (s *Store) SaveContentPreferences(ctx context.Context, contentID string, prefs ContentPreferences) error {
	_, err := s.db.Collection("preferences").UpdateOne(ctx,
		bson.M{"contentId": contentID},
		bson.M{"$set": bson.M{
			"contentId":   contentID,
			"preferences": prefs,
			"updatedAt":   time.Now().UTC().Format(time.RFC3339),
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// RecordAnalytics stores an analytics event, or logs it in mock mode.
func (s *Store) RecordAnalytics(ctx context.Context, event string, data any) error {
	if !s.Available() {
		s.log.Info("analytics event", "event", event, "data", fmt.Sprintf("%v", data))
		return nil
	}
	_, err := s.db.Collection("analytics").InsertOne(ctx, bson.M{
		"event":     event,
		"data":      data,
		"timestamp": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert analytics: %w", err)
	}
	return nil
}

// RecordFeedback stores message feedback, or logs it in mock mode.
func (s *Store) RecordFeedback(ctx context.Context, messageID, feedback, messageText string) error {
	if !s.Available() {
		s.log.Info("feedback", "message_id", messageID, "feedback", feedback)
		return nil
	}
	_, err := s.db.Collection("feedback").InsertOne(ctx, bson.M{
		"messageId":   messageID,
		"feedback":    feedback,
		"messageText": messageText,
		"timestamp":   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
