package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoCollection stores documents in a MongoDB collection.
type MongoCollection[T Document[T]] struct {
	coll    *mongo.Collection
	indexes []Index
}

func NewMongoCollection[T Document[T]](db *mongo.Database, name string, indexes []Index) *MongoCollection[T] {
	return &MongoCollection[T]{coll: db.Collection(name), indexes: indexes}
}

func (c *MongoCollection[T]) Name() string { return c.coll.Name() }

// EnsureIndexes creates the declared indexes. Unique indexes back up the
// uniqueness pre-checks done by the services.
func (c *MongoCollection[T]) EnsureIndexes(ctx context.Context) error {
	if len(c.indexes) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, 0, len(c.indexes))
	for _, idx := range c.indexes {
		keys := bson.D{}
		for _, f := range idx.Fields {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		opts := options.Index()
		if idx.Unique {
			opts.SetUnique(true)
		}
		models = append(models, mongo.IndexModel{Keys: keys, Options: opts})
	}
	_, err := c.coll.Indexes().CreateMany(ctx, models)
	return err
}

func (c *MongoCollection[T]) Find(ctx context.Context, opts FindOptions) ([]T, error) {
	findOpts := options.Find().SetSort(sortDoc(opts.Sort))
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cur, err := c.coll.Find(ctx, filterDoc(opts.Filter), findOpts)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MongoCollection[T]) FindOne(ctx context.Context, filter query.Filter) (T, bool, error) {
	var doc T
	err := c.coll.FindOne(ctx, filterDoc(filter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, err
	}
	return doc, true, nil
}

func (c *MongoCollection[T]) Insert(ctx context.Context, doc T) error {
	_, err := c.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateKeyError{Collection: c.Name(), Err: err}
	}
	return err
}

func (c *MongoCollection[T]) Update(ctx context.Context, id model.ID, u Update) (T, bool, error) {
	if u.IsEmpty() {
		return c.FindOne(ctx, query.Eq{Field: model.FieldID, Value: id})
	}

	var doc T
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := c.coll.FindOneAndUpdate(ctx, bson.M{model.FieldID: id}, updateDoc(u), opts).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return doc, false, nil
	case mongo.IsDuplicateKeyError(err):
		return doc, false, &DuplicateKeyError{Collection: c.Name(), Err: err}
	case err != nil:
		return doc, false, err
	}
	return doc, true, nil
}

func (c *MongoCollection[T]) Delete(ctx context.Context, id model.ID) (T, bool, error) {
	var doc T
	err := c.coll.FindOneAndDelete(ctx, bson.M{model.FieldID: id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, err
	}
	return doc, true, nil
}

func (c *MongoCollection[T]) Count(ctx context.Context, filter query.Filter) (int64, error) {
	return c.coll.CountDocuments(ctx, filterDoc(filter))
}

func (c *MongoCollection[T]) Distinct(ctx context.Context, field string, filter query.Filter) ([]any, error) {
	return c.coll.Distinct(ctx, field, filterDoc(filter))
}

// filterDoc translates a query filter into a MongoDB filter document.
func filterDoc(f query.Filter) bson.M {
	switch f := f.(type) {
	case nil:
		return bson.M{}
	case query.Eq:
		return bson.M{f.Field: f.Value}
	case query.Ne:
		return bson.M{f.Field: bson.M{"$ne": f.Value}}
	case query.In:
		values := bson.A{}
		values = append(values, f.Values...)
		return bson.M{f.Field: bson.M{"$in": values}}
	case query.ContainsFold:
		return bson.M{f.Field: primitive.Regex{Pattern: regexp.QuoteMeta(f.Term), Options: "i"}}
	case query.And:
		if len(f) == 0 {
			return bson.M{}
		}
		parts := make(bson.A, len(f))
		for i, sub := range f {
			parts[i] = filterDoc(sub)
		}
		return bson.M{"$and": parts}
	case query.Or:
		if len(f) == 0 {
			return bson.M{model.FieldID: bson.M{"$in": bson.A{}}}
		}
		parts := make(bson.A, len(f))
		for i, sub := range f {
			parts[i] = filterDoc(sub)
		}
		return bson.M{"$or": parts}
	}
	panic(fmt.Sprintf("store: unsupported filter %T", f))
}

// sortDoc translates a sort into a MongoDB sort document, adding an _id
// tiebreaker so paging is stable.
func sortDoc(s query.Sort) bson.D {
	doc := bson.D{}
	hasID := false
	for _, key := range s {
		dir := 1
		if key.Desc {
			dir = -1
		}
		if key.Field == model.FieldID {
			hasID = true
		}
		doc = append(doc, bson.E{Key: key.Field, Value: dir})
	}
	if !hasID {
		doc = append(doc, bson.E{Key: model.FieldID, Value: 1})
	}
	return doc
}

func updateDoc(u Update) bson.M {
	doc := bson.M{}
	if len(u.Set) > 0 {
		set := bson.M{}
		for k, v := range u.Set {
			set[k] = v
		}
		doc["$set"] = set
	}
	if len(u.AddToSet) > 0 {
		add := bson.M{}
		for field, ids := range u.AddToSet {
			add[field] = bson.M{"$each": ids}
		}
		doc["$addToSet"] = add
	}
	if len(u.Pull) > 0 {
		pull := bson.M{}
		for field, ids := range u.Pull {
			pull[field] = bson.M{"$in": ids}
		}
		doc["$pull"] = pull
	}
	return doc
}

// MongoConfig holds the connection settings for NewMongoStore.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// NewMongoStore connects to MongoDB, verifies the connection and creates the
// collection indexes.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*Store, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	perms := NewMongoCollection[*model.Permission](db, PermissionsCollection, PermissionIndexes)
	roles := NewMongoCollection[*model.Role](db, RolesCollection, RoleIndexes)
	users := NewMongoCollection[*model.User](db, UsersCollection, UserIndexes)

	for _, ix := range []interface {
		EnsureIndexes(context.Context) error
	}{perms, roles, users} {
		if err := ix.EnsureIndexes(connectCtx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return &Store{
		Permissions: perms,
		Roles:       roles,
		Users:       users,
		IDs:         ObjectIDs{},
		closer:      client.Disconnect,
	}, nil
}
