package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	client   *mongo.Client
	content  *mongo.Collection
	fields   *mongo.Collection
	channels *mongo.Collection
	admins   *mongo.Collection
}

const (
	TypeMovie  = "movie"
	TypeSerial = "serial"
)

const (
	ChannelMandatory = "mandatory"
	ChannelDatabase  = "database"
)

// Part is one segment of a multi-part upload: the Telegram file id plus the
// message id of its copy in the storage channel.
type Part struct {
	Number           int    `bson:"number"`
	FileID           string `bson:"file_id"`
	StorageMessageID int    `bson:"storage_message_id"`
}

type ContentRecord struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty"`
	Code                  int                `bson:"code"`
	Type                  string             `bson:"type"`
	Title                 string             `bson:"title"`
	Genre                 string             `bson:"genre,omitempty"`
	Description           string             `bson:"description,omitempty"`
	Season                int                `bson:"season,omitempty"`
	EpisodeCount          int                `bson:"episode_count,omitempty"`
	PosterFileID          string             `bson:"poster_file_id,omitempty"`
	PosterMessageID       int                `bson:"poster_message_id,omitempty"`
	FieldID               primitive.ObjectID `bson:"field_id,omitempty"`
	Parts                 []Part             `bson:"parts,omitempty"`
	PartsCount            int                `bson:"parts_count"`
	Views                 int64              `bson:"views"`
	AnnouncementMessageID int                `bson:"announcement_message_id,omitempty"`
	CreatedAt             time.Time          `bson:"created_at"`
	UpdatedAt             time.Time          `bson:"updated_at"`
}

// Field is a publication destination: the public announcement channel plus
// the storage channel that holds the raw media.
type Field struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Name              string             `bson:"name"`
	ChannelRef        string             `bson:"channel_ref"`
	ChannelLink       string             `bson:"channel_link,omitempty"`
	DatabaseChannelID primitive.ObjectID `bson:"database_channel_id"`
	CreatedAt         time.Time          `bson:"created_at"`
}

type Channel struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Kind       string             `bson:"kind"`
	Name       string             `bson:"name"`
	ChannelRef string             `bson:"channel_ref"`
	Link       string             `bson:"link,omitempty"`
	Active     bool               `bson:"active"`
	CreatedAt  time.Time          `bson:"created_at"`
}

type Admin struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	TelegramID int64              `bson:"telegram_id"`
	Name       string             `bson:"name,omitempty"`
	AddedBy    int64              `bson:"added_by,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func NewMongo(ctx context.Context, uri string) (*Mongo, error) {
	if uri == "" {
		return nil, errors.New("MONGODB_URI is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	db := client.Database("kinohub")
	m := &Mongo{
		client:   client,
		content:  db.Collection("content"),
		fields:   db.Collection("fields"),
		channels: db.Collection("channels"),
		admins:   db.Collection("admins"),
	}
	_, _ = m.content.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{bson.E{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	_, _ = m.admins.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{bson.E{Key: "telegram_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return m, nil
}

// ---- content ----

func (m *Mongo) FindByCode(ctx context.Context, code int) (*ContentRecord, error) {
	if m == nil {
		return nil, errors.New("mongo not configured")
	}
	var rec ContentRecord
	err := m.content.FindOne(ctx, bson.M{"code": code}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &rec, err
}

func (m *Mongo) CodeInUse(ctx context.Context, code int) (bool, error) {
	if m == nil {
		return false, errors.New("mongo not configured")
	}
	n, err := m.content.CountDocuments(ctx, bson.M{"code": code}, options.Count().SetLimit(1))
	return n > 0, err
}

// CreateContent inserts the record and returns its id. Records are never
// deleted by the ingestion flows.
func (m *Mongo) CreateContent(ctx context.Context, rec *ContentRecord) (string, error) {
	if m == nil {
		return "", errors.New("mongo not configured")
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	res, err := m.content.InsertOne(ctx, rec)
	if err != nil {
		return "", err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	rec.ID = id
	return id.Hex(), nil
}

func (m *Mongo) AppendPart(ctx context.Context, recordID string, part Part) error {
	if m == nil {
		return errors.New("mongo not configured")
	}
	oid, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return err
	}
	_, err = m.content.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$push": bson.M{"parts": part},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	return err
}

func (m *Mongo) UpdatePartsCount(ctx context.Context, recordID string, count int) error {
	if m == nil {
		return errors.New("mongo not configured")
	}
	oid, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return err
	}
	_, err = m.content.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"parts_count": count, "updated_at": time.Now()}},
	)
	return err
}

// SetAnnouncement records the public announcement message id and the field the
// record was published into.
func (m *Mongo) SetAnnouncement(ctx context.Context, recordID string, fieldID string, messageID int) error {
	if m == nil {
		return errors.New("mongo not configured")
	}
	oid, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return err
	}
	set := bson.M{"announcement_message_id": messageID, "updated_at": time.Now()}
	if fieldID != "" {
		fid, err := primitive.ObjectIDFromHex(fieldID)
		if err != nil {
			return err
		}
		set["field_id"] = fid
	}
	_, err = m.content.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	return err
}

func (m *Mongo) ListRecentContent(ctx context.Context, limit int) ([]ContentRecord, error) {
	if m == nil {
		return nil, errors.New("mongo not configured")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	opts := options.Find().SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := m.content.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	items := make([]ContentRecord, 0, limit)
	for cur.Next(ctx) {
		var it ContentRecord
		if err := cur.Decode(&it); err != nil {
			continue
		}
		items = append(items, it)
	}
	return items, cur.Err()
}

// ---- fields ----

func (m *Mongo) ListFields(ctx context.Context) ([]Field, error) {
	if m == nil {
		return nil, errors.New("mongo not configured")
	}
	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: 1}})
	cur, err := m.fields.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var fields []Field
	for cur.Next(ctx) {
		var f Field
		if err := cur.Decode(&f); err != nil {
			continue
		}
		fields = append(fields, f)
	}
	return fields, cur.Err()
}

func (m *Mongo) FindFieldByID(ctx context.Context, id string) (*Field, error) {
	if m == nil {
		return nil, errors.New("mongo not configured")
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var f Field
	err = m.fields.FindOne(ctx, bson.M{"_id": oid}).Decode(&f)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &f, err
}

func (m *Mongo) CreateField(ctx context.Context, f *Field) (string, error) {
	if m == nil {
		return "", errors.New("mongo not configured")
	}
	f.CreatedAt = time.Now()
	res, err := m.fields.InsertOne(ctx, f)
	if err != nil {
		return "", err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	f.ID = id
	return id.Hex(), nil
}

func (m *Mongo) DeleteField(ctx context.Context, id string) error {
	if m == nil {
		return errors.New("mongo not configured")
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = m.fields.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

// ---- channels ----

func (m *Mongo) ListChannels(ctx context.Context, kind string) ([]Channel, error) {
	if m == nil {
		return nil, errors.New("mongo not configured")
	}
	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: 1}})
	cur, err := m.channels.Find(ctx, bson.M{"kind": kind, "active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var channels []Channel
	for cur.Next(ctx) {
		var c Channel
		if err := cur.Decode(&c); err != nil {
			continue
		}
		channels = append(channels, c)
	}
	return channels, cur.Err()
}

func (m *Mongo) FindChannelByID(ctx context.Context, id string) (*Channel, error) {
	if m == nil {
		return nil, errors.New("mongo not configured")
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var c Channel
	err = m.channels.FindOne(ctx, bson.M{"_id": oid}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	return &c, err
}

func (m *Mongo) CreateChannel(ctx context.Context, c *Channel) (string, error) {
	if m == nil {
		return "", errors.New("mongo not configured")
	}
	c.Active = true
	c.CreatedAt = time.Now()
	res, err := m.channels.InsertOne(ctx, c)
	if err != nil {
		return "", err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	c.ID = id
	return id.Hex(), nil
}

// ---- admins ----

func (m *Mongo) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	if m == nil {
		return false, errors.New("mongo not configured")
	}
	n, err := m.admins.CountDocuments(ctx, bson.M{"telegram_id": telegramID}, options.Count().SetLimit(1))
	return n > 0, err
}

func (m *Mongo) AddAdmin(ctx context.Context, telegramID int64, name string, addedBy int64) error {
	if m == nil {
		return errors.New("mongo not configured")
	}
	_, err := m.admins.UpdateOne(ctx,
		bson.M{"telegram_id": telegramID},
		bson.M{"$set": bson.M{
			"telegram_id": telegramID,
			"name":        name,
			"added_by":    addedBy,
			"created_at":  time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}
