// Package mongo implements the repository interfaces on a MongoDB database.
//
// Each entity is a document in its own collection ("profiles", "tasks",
// "identities") keyed by the string id in _id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/smartwork/internal/apperror"
	"github.com/sakif/smartwork/internal/model"
	"github.com/sakif/smartwork/internal/repository"
)

var _ repository.Store = (*DB)(nil)

type DB struct {
	client     *mongo.Client
	profiles   *mongo.Collection
	tasks      *mongo.Collection
	identities *mongo.Collection
}

// New connects to uri, selects database and ensures indexes.
func New(ctx context.Context, uri, database string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	mdb := client.Database(database)
	db := &DB{
		client:     client,
		profiles:   mdb.Collection("profiles"),
		tasks:      mdb.Collection("tasks"),
		identities: mdb.Collection("identities"),
	}
	if err := db.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ensuring indexes: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

func (db *DB) ensureIndexes(ctx context.Context) error {
	_, err := db.profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "role", Value: 1}, {Key: "teamLeadId", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = db.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = db.identities.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "googleSub", Value: 1}},
			// Sparse so identities without a Google link do not collide.
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	return err
}

// --- profiles ---

func (db *DB) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == "" {
		p.ID = xid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := db.profiles.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("profile", p.ID)
		}
		return fmt.Errorf("mongo: creating profile: %w", err)
	}
	return nil
}

func (db *DB) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	if err := db.profiles.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("profile", id)
		}
		return nil, fmt.Errorf("mongo: getting profile %s: %w", id, err)
	}
	return &p, nil
}

func (db *DB) ListProfiles(ctx context.Context, f repository.ProfileFilter) ([]model.Profile, error) {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.TeamLeadID != nil {
		filter["teamLeadId"] = *f.TeamLeadID
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := db.profiles.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing profiles: %w", err)
	}
	profiles := []model.Profile{}
	if err := cur.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("mongo: decoding profiles: %w", err)
	}
	return profiles, nil
}

func (db *DB) SetTeamLead(ctx context.Context, internID, leadID string) error {
	res, err := db.profiles.UpdateOne(ctx,
		bson.M{"_id": internID},
		bson.M{"$set": bson.M{"teamLeadId": leadID, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: setting team lead of %s: %w", internID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("profile", internID)
	}
	return nil
}

// --- tasks ---

func (db *DB) CreateTask(ctx context.Context, t *model.Task) error {
	t.ID = xid.New().String()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	if _, err := db.tasks.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("mongo: creating task: %w", err)
	}
	return nil
}

func (db *DB) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	if err := db.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("task", id)
		}
		return nil, fmt.Errorf("mongo: getting task %s: %w", id, err)
	}
	return &t, nil
}

func (db *DB) ListTasks(ctx context.Context, f repository.TaskFilter) ([]model.Task, error) {
	filter := bson.M{}
	if f.AssignedTo != "" {
		filter["assignedTo"] = f.AssignedTo
	}
	if f.CreatedBy != "" {
		filter["createdBy"] = f.CreatedBy
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := db.tasks.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing tasks: %w", err)
	}
	tasks := []model.Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("mongo: decoding tasks: %w", err)
	}
	return tasks, nil
}

// PatchTask issues one $set; a single-document update is atomic in MongoDB.
func (db *DB) PatchTask(ctx context.Context, id string, p model.TaskPatch) error {
	set := bson.M{"status": p.Status, "updatedAt": time.Now().UTC()}
	if p.WebsiteURL != nil {
		set["websiteURL"] = *p.WebsiteURL
	}
	if p.GitHubURL != nil {
		set["githubURL"] = *p.GitHubURL
	}

	res, err := db.tasks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("mongo: patching task %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("task", id)
	}
	return nil
}

// --- identities ---

func (db *DB) CreateIdentity(ctx context.Context, id *model.Identity) error {
	if id.SubjectID == "" {
		id.SubjectID = xid.New().String()
	}
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	now := time.Now().UTC()
	id.CreatedAt = now
	id.UpdatedAt = now

	if _, err := db.identities.InsertOne(ctx, id); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("identity", id.Email)
		}
		return fmt.Errorf("mongo: creating identity: %w", err)
	}
	return nil
}

func (db *DB) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return db.findIdentity(ctx, bson.M{"email": email}, email)
}

func (db *DB) GetIdentityByGoogleSub(ctx context.Context, sub string) (*model.Identity, error) {
	return db.findIdentity(ctx, bson.M{"googleSub": sub}, sub)
}

func (db *DB) findIdentity(ctx context.Context, filter bson.M, key string) (*model.Identity, error) {
	var id model.Identity
	if err := db.identities.FindOne(ctx, filter).Decode(&id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("identity", key)
		}
		return nil, fmt.Errorf("mongo: getting identity %s: %w", key, err)
	}
	return &id, nil
}

func (db *DB) LinkGoogle(ctx context.Context, subjectID, sub string) error {
	return db.setIdentity(ctx, subjectID, bson.M{"googleSub": sub})
}

func (db *DB) SetPasswordHash(ctx context.Context, subjectID, hash string) error {
	return db.setIdentity(ctx, subjectID, bson.M{"passwordHash": hash})
}

func (db *DB) setIdentity(ctx context.Context, subjectID string, set bson.M) error {
	set["updatedAt"] = time.Now().UTC()
	res, err := db.identities.UpdateOne(ctx, bson.M{"_id": subjectID}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("identity", subjectID)
		}
		return fmt.Errorf("mongo: updating identity %s: %w", subjectID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("identity", subjectID)
	}
	return nil
}
