// Package mongo stores bot data in MongoDB using the collection layout of
// the web dashboard (users, groups, transactions, splits, otps).
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oatsaysai/budgetbuddy/internal/config"
	"github.com/oatsaysai/budgetbuddy/internal/models"
	"github.com/oatsaysai/budgetbuddy/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Store implements store.Store on MongoDB.
type Store struct {
	client       *mongo.Client
	users        *mongo.Collection
	groups       *mongo.Collection
	transactions *mongo.Collection
	splits       *mongo.Collection
	codes        *mongo.Collection
	log          *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Connect opens a client for cfg and checks the server is reachable.
func Connect(ctx context.Context, cfg config.MongoDBConfig, log *zap.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("unable to reach MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	log.Info("connected to MongoDB", zap.String("db", cfg.Database))
	return &Store{
		client:       client,
		users:        db.Collection("users"),
		groups:       db.Collection("groups"),
		transactions: db.Collection("transactions"),
		splits:       db.Collection("splits"),
		codes:        db.Collection("otps"),
		log:          log,
	}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Migrate creates the indexes the queries rely on, including the TTL index
// that lets MongoDB purge stale one-time codes.
func (s *Store) Migrate(ctx context.Context) error {
	sparseUnique := options.Index().SetUnique(true).SetSparse(true)
	indexes := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "chatId", Value: 1}}, Options: sparseUnique},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: sparseUnique},
			{Keys: bson.D{{Key: "mobile", Value: 1}}, Options: sparseUnique},
		}},
		{s.groups, []mongo.IndexModel{
			{Keys: bson.D{{Key: "members", Value: 1}, {Key: "name", Value: 1}}},
		}},
		{s.transactions, []mongo.IndexModel{
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}},
		}},
		{s.splits, []mongo.IndexModel{
			{Keys: bson.D{{Key: "transaction", Value: 1}}},
			{Keys: bson.D{{Key: "participants.user", Value: 1}}},
		}},
		{s.codes, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "createdAt", Value: 1}}, Options: options.Index().
				SetExpireAfterSeconds(int32(models.OneTimeCodeTTL / time.Second))},
		}},
	}

	for _, ix := range indexes {
		names, err := ix.coll.Indexes().CreateMany(ctx, ix.models)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", ix.coll.Name(), err)
		}
		s.log.Info("indexes ready", zap.String("collection", ix.coll.Name()), zap.Strings("indexes", names))
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var d userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&d); err != nil {
		if err = notFound(err); err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("error querying user: %w", err)
	}
	return d.model(s.log), nil
}

// FindUserByChatID returns the user bound to chatID.
func (s *Store) FindUserByChatID(ctx context.Context, chatID string) (*models.User, error) {
	if chatID == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, bson.M{"chatId": chatID})
}

// FindUserByID returns the user with the given id.
func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

// FindUserByEmail matches the normalized email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, bson.M{"email": email})
}

// FindUserByMobile matches the mobile number exactly.
func (s *Store) FindUserByMobile(ctx context.Context, mobile string) (*models.User, error) {
	if mobile == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, bson.M{"mobile": mobile})
}

func replace(ctx context.Context, coll *mongo.Collection, id any, doc any) error {
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

// SaveUser inserts or replaces user.
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	if user.ID == "" {
		user.ID = models.NewID()
		user.CreatedAt = now
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}
	user.UpdatedAt = now

	d, err := newUserDoc(user)
	if err != nil {
		return fmt.Errorf("error encoding user: %w", err)
	}
	if err := replace(ctx, s.users, d.ID, d); err != nil {
		return fmt.Errorf("error saving user %s: %w", user.ID, err)
	}
	return nil
}

// DeleteUser removes the user with the given id.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return store.ErrNotFound
	}
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("error deleting user %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) findGroups(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]*models.Group, error) {
	cur, err := s.groups.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("error querying groups: %w", err)
	}
	var docs []groupDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding groups: %w", err)
	}
	groups := make([]*models.Group, 0, len(docs))
	for i := range docs {
		groups = append(groups, docs[i].model())
	}
	return groups, nil
}

// FindGroupsByMember lists userID's groups, oldest first.
func (s *Store) FindGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error) {
	oid, err := objectID(userID)
	if err != nil {
		return nil, nil
	}
	return s.findGroups(ctx, bson.M{"members": oid},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
}

// FindGroupByNameAndMember finds the group called name that userID belongs to.
func (s *Store) FindGroupByNameAndMember(ctx context.Context, name, userID string) (*models.Group, error) {
	oid, err := objectID(userID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	groups, err := s.findGroups(ctx, bson.M{"name": name, "members": oid},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(1))
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, store.ErrNotFound
	}
	return groups[0], nil
}

// FindGroupByID returns the group with the given id.
func (s *Store) FindGroupByID(ctx context.Context, id string) (*models.Group, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	var d groupDoc
	if err := s.groups.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if err = notFound(err); err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("error querying group: %w", err)
	}
	return d.model(), nil
}

// SaveGroup inserts or replaces group.
func (s *Store) SaveGroup(ctx context.Context, group *models.Group) error {
	now := time.Now()
	if group.ID == "" {
		group.ID = models.NewID()
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	d, err := newGroupDoc(group)
	if err != nil {
		return fmt.Errorf("error encoding group: %w", err)
	}
	if err := replace(ctx, s.groups, d.ID, d); err != nil {
		return fmt.Errorf("error saving group %s: %w", group.ID, err)
	}
	return nil
}

// FindTransactionsByOwnerAndDateRange pages through ownerID's transactions
// in [start, end), newest first.
func (s *Store) FindTransactionsByOwnerAndDateRange(ctx context.Context, ownerID string, start, end time.Time, offset, limit int) ([]*models.Transaction, int, error) {
	oid, err := objectID(ownerID)
	if err != nil {
		return nil, 0, nil
	}
	filter := bson.M{"userId": oid, "date": bson.M{"$gte": start, "$lt": end}}

	total, err := s.transactions.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting transactions: %w", err)
	}
	if total == 0 || int64(offset) >= total {
		return nil, int(total), nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.transactions.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying transactions: %w", err)
	}
	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("error decoding transactions: %w", err)
	}

	out := make([]*models.Transaction, 0, len(docs))
	for i := range docs {
		t, err := docs[i].model()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, int(total), nil
}

// SaveTransaction inserts or replaces tx.
func (s *Store) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	now := time.Now()
	if tx.ID == "" {
		tx.ID = models.NewID()
		tx.CreatedAt = now
	}
	if tx.Date.IsZero() {
		tx.Date = now
	}

	d, err := newTransactionDoc(tx)
	if err != nil {
		return fmt.Errorf("error encoding transaction: %w", err)
	}
	if err := replace(ctx, s.transactions, d.ID, d); err != nil {
		return fmt.Errorf("error saving transaction %s: %w", tx.ID, err)
	}
	return nil
}

// SaveSplit inserts or replaces split.
func (s *Store) SaveSplit(ctx context.Context, split *models.Split) error {
	if split.ID == "" {
		split.ID = models.NewID()
		split.CreatedAt = time.Now()
	}

	d, err := newSplitDoc(split)
	if err != nil {
		return fmt.Errorf("error encoding split: %w", err)
	}
	if err := replace(ctx, s.splits, d.ID, d); err != nil {
		return fmt.Errorf("error saving split %s: %w", split.ID, err)
	}
	return nil
}

// UpsertOneTimeCode replaces the code stored for email.
func (s *Store) UpsertOneTimeCode(ctx context.Context, email, code string, createdAt time.Time) error {
	email = models.NormalizeEmail(email)
	_, err := s.codes.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{
			"$set":         bson.M{"otp": code, "createdAt": createdAt},
			"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error saving one-time code: %w", err)
	}
	return nil
}

// FindOneTimeCode returns the code stored for email.
func (s *Store) FindOneTimeCode(ctx context.Context, email string) (*models.OneTimeCode, error) {
	var d oneTimeCodeDoc
	if err := s.codes.FindOne(ctx, bson.M{"email": models.NormalizeEmail(email)}).Decode(&d); err != nil {
		if err = notFound(err); err == store.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("error querying one-time code: %w", err)
	}
	return &models.OneTimeCode{ID: d.ID.Hex(), Email: d.Email, Code: d.Code, CreatedAt: d.CreatedAt}, nil
}

// DeleteOneTimeCode removes the code with the given id.
func (s *Store) DeleteOneTimeCode(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return store.ErrNotFound
	}
	res, err := s.codes.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("error deleting one-time code: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
