package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"civicreport-be/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo stores records in a MongoDB database: issues, users, notes and a
// counters collection for report numbers; attachments go to GridFS.
type Mongo struct {
	db       *mongo.Database
	issues   *mongo.Collection
	users    *mongo.Collection
	notes    *mongo.Collection
	counters *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		db:       db,
		issues:   db.Collection("issues"),
		users:    db.Collection("users"),
		notes:    db.Collection("notes"),
		counters: db.Collection("counters"),
	}
}

// EnsureIndexes creates the indexes the queries below rely on.
func (s *Mongo) EnsureIndexes() error {
	if err := models.EnsureIssueIndexes(s.issues); err != nil {
		return fmt.Errorf("issue indexes: %w", err)
	}
	if err := models.EnsureUserIndex(s.users); err != nil {
		return fmt.Errorf("user index: %w", err)
	}
	if err := models.EnsureNoteIndex(s.notes); err != nil {
		return fmt.Errorf("note index: %w", err)
	}
	return nil
}

func (s *Mongo) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// issueFilter translates a Query into a find filter.
func issueFilter(q Query) bson.M {
	filter := bson.M{}

	if q.ReporterID != "" {
		filter["reporterId"] = q.ReporterID
	}
	if category := q.CategoryKey(); category != "" {
		filter["category"] = category
	}
	if statuses := q.Statuses(); statuses != nil {
		filter["status"] = bson.M{"$in": statuses}
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := regexp.QuoteMeta(search)
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": pattern, "$options": "i"}},
			{"address": bson.M{"$regex": pattern, "$options": "i"}},
			{"reporter": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	return filter
}

func issueSort(sort string) bson.D {
	switch sort {
	case SortNewest:
		return bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "seq", Value: 1}}
	case SortOldest:
		return bson.D{{Key: "date", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "seq", Value: 1}}
	case SortPriority:
		return bson.D{{Key: "priorityRank", Value: -1}, {Key: "seq", Value: 1}}
	default:
		return bson.D{{Key: "seq", Value: 1}}
	}
}

func (s *Mongo) ListIssues(ctx context.Context, q Query) ([]models.Issue, int, error) {
	filter := issueFilter(q)

	total, err := s.issues.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$addFields", Value: bson.M{
			"priorityRank": bson.M{"$switch": bson.M{
				"branches": bson.A{
					bson.M{"case": bson.M{"$eq": bson.A{"$priority", models.PriorityHigh}}, "then": 3},
					bson.M{"case": bson.M{"$eq": bson.A{"$priority", models.PriorityMedium}}, "then": 2},
					bson.M{"case": bson.M{"$eq": bson.A{"$priority", models.PriorityLow}}, "then": 1},
				},
				"default": 0,
			}},
		}}},
		{{Key: "$sort", Value: issueSort(q.Sort)}},
	}
	if q.Offset > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: int64(q.Offset)}})
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(q.Limit)}})
	}

	cursor, err := s.issues.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("find issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, fmt.Errorf("decode issues: %w", err)
	}
	return issues, int(total), nil
}

func (s *Mongo) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	var issue models.Issue
	err := s.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &issue, nil
}

func (s *Mongo) nextSeq(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}

func (s *Mongo) CreateIssue(ctx context.Context, issue *models.Issue) error {
	seq, err := s.nextSeq(ctx, "issues")
	if err != nil {
		return fmt.Errorf("next issue number: %w", err)
	}

	now := time.Now()
	issue.Seq = seq
	if issue.ID == "" {
		issue.ID = IssueID(now.Year(), seq)
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = issue.CreatedAt

	_, err = s.issues.InsertOne(ctx, issue)
	return err
}

func (s *Mongo) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	update := bson.M{
		"title":       issue.Title,
		"category":    issue.Category,
		"status":      issue.Status,
		"priority":    issue.Priority,
		"address":     issue.Address,
		"department":  issue.Department,
		"assignedTo":  issue.AssignedTo,
		"description": issue.Description,
		"timeline":    issue.Timeline,
		"updatedAt":   issue.UpdatedAt,
		"version":     issue.Version + 1,
	}
	filter := bson.M{"_id": issue.ID, "version": issue.Version}
	result, err := s.issues.UpdateOne(ctx, filter, bson.M{"$set": update})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		count, err := s.issues.CountDocuments(ctx, bson.M{"_id": issue.ID})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	issue.Version++
	return nil
}

func (s *Mongo) AddNote(ctx context.Context, note *models.Note) error {
	count, err := s.issues.CountDocuments(ctx, bson.M{"_id": note.IssueID})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	_, err = s.notes.InsertOne(ctx, note)
	return err
}

func (s *Mongo) ListNotes(ctx context.Context, issueID string) ([]models.Note, error) {
	cursor, err := s.notes.Find(ctx, bson.M{"issue": issueID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	notes := []models.Note{}
	if err := cursor.All(ctx, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *Mongo) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	u.Email = strings.ToLower(u.Email)

	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s *Mongo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *Mongo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Mongo) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Mongo) UpdateUser(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now()
	result, err := s.users.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": bson.M{
		"name":          u.Name,
		"email":         u.Email,
		"phone":         u.Phone,
		"notifications": u.Notifications,
		"updatedAt":     u.UpdatedAt,
	}})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type attachmentMeta struct {
	Owner       string `bson:"owner"`
	ContentType string `bson:"contentType"`
}

func (s *Mongo) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName("attachments"))
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		if err := bucket.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
	}
	return bucket, nil
}

func (s *Mongo) PutAttachment(ctx context.Context, a *Attachment, r io.Reader) error {
	bucket, err := s.bucket(ctx)
	if err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	counted := &countingReader{r: r}
	opts := options.GridFSUpload().SetMetadata(attachmentMeta{Owner: a.OwnerID, ContentType: a.ContentType})
	if err := bucket.UploadFromStreamWithID(a.ID, a.Filename, counted, opts); err != nil {
		return fmt.Errorf("upload attachment: %w", err)
	}
	a.Size = counted.n
	return nil
}

func (s *Mongo) OpenAttachment(ctx context.Context, id string) (*Attachment, io.ReadCloser, error) {
	bucket, err := s.bucket(ctx)
	if err != nil {
		return nil, nil, err
	}
	stream, err := bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	file := stream.GetFile()
	var meta attachmentMeta
	if len(file.Metadata) > 0 {
		if err := bson.Unmarshal(file.Metadata, &meta); err != nil {
			stream.Close()
			return nil, nil, err
		}
	}
	return &Attachment{
		ID:          id,
		OwnerID:     meta.Owner,
		Filename:    file.Name,
		ContentType: meta.ContentType,
		Size:        file.Length,
		CreatedAt:   file.UploadDate,
	}, stream, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
