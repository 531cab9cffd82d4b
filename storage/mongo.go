package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-quest-ledger/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	identitiesCollection = "identities"
	challengesCollection = "challenges"
)

// identityDocument is the stored shape: the identity plus its embedded event log,
// so a quest completion is one conditional single-document update.
type identityDocument struct {
	models.Identity `bson:",inline"`
	XPEventLog      []models.XPEvent `bson:"xpEventLog"`
}

var errIdentityExists = errors.New("identity exists")

// MongoStore implements Store on MongoDB. Referral credits touch two documents
// and run in a transaction, which needs a replica set deployment.
type MongoStore struct {
	client     *mongo.Client
	identities *mongo.Collection
	challenges *mongo.Collection
}

// OpenMongo connects, pings and ensures the indexes the guards rely on.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:     client,
		identities: db.Collection(identitiesCollection),
		challenges: db.Collection(challengesCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.identities.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "displayNameKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "xp", Value: -1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "referrer", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create identity indexes: %w", err)
	}

	// expired challenges are also dropped by the server
	_, err = s.challenges.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create challenge indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

var withoutEventLog = bson.M{"xpEventLog": 0}

func (s *MongoStore) exists(ctx context.Context, wallet string) (bool, error) {
	n, err := s.identities.CountDocuments(ctx, bson.M{"_id": wallet}, options.Count().SetLimit(1))
	return n > 0, err
}

func (s *MongoStore) CreateIdentity(ctx context.Context, identity *models.Identity) (bool, error) {
	doc := identityDocument{Identity: *identity, XPEventLog: []models.XPEvent{}}
	if doc.CompletedQuestIDs == nil {
		doc.CompletedQuestIDs = []string{}
	}

	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.identities.InsertOne(sc, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return errIdentityExists
			}
			return err
		}
		if identity.Referrer == nil {
			return nil
		}
		_, err := s.identities.UpdateOne(sc,
			bson.M{"_id": *identity.Referrer},
			bson.M{"$inc": bson.M{"referredCount": 1, "version": 1}},
		)
		return err
	})
	if errors.Is(err, errIdentityExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MongoStore) GetIdentity(ctx context.Context, wallet string) (*models.Identity, error) {
	var identity models.Identity
	err := s.identities.FindOne(ctx, bson.M{"_id": wallet}, options.FindOne().SetProjection(withoutEventLog)).Decode(&identity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if identity.CompletedQuestIDs == nil {
		identity.CompletedQuestIDs = []string{}
	}
	return &identity, nil
}

// creditReferral applies the referral half of a grant inside a transaction.
func (s *MongoStore) creditReferral(sc mongo.SessionContext, ref *models.ReferralCredit) error {
	if ref == nil {
		return nil
	}
	_, err := s.identities.UpdateOne(sc,
		bson.M{"_id": ref.ReferrerWallet},
		bson.M{
			"$inc":  bson.M{"xp": ref.Event.Amount, "xpFromReferrals": ref.Event.Amount, "version": 1},
			"$push": bson.M{"xpEventLog": ref.Event},
			"$set":  bson.M{"updatedAt": ref.Event.CreatedAt},
		},
	)
	return err
}

// missOrConflict resolves a zero-match conditional update.
func (s *MongoStore) missOrConflict(ctx context.Context, wallet string, conflict error) error {
	ok, err := s.exists(ctx, wallet)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return conflict
}

var errAlreadyCompleted = errors.New("quest already completed")

func (s *MongoStore) ApplyQuestCompletion(ctx context.Context, grant models.XPGrant, questID string) (bool, error) {
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := s.identities.UpdateOne(sc,
			bson.M{"_id": grant.WalletAddress, "completedQuestIds": bson.M{"$ne": questID}},
			bson.M{
				"$push": bson.M{"completedQuestIds": questID, "xpEventLog": grant.Event},
				"$inc":  bson.M{"xp": grant.Event.Amount, "version": 1},
				"$set":  bson.M{"updatedAt": grant.Event.CreatedAt},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return s.missOrConflict(sc, grant.WalletAddress, errAlreadyCompleted)
		}
		return s.creditReferral(sc, grant.Referral)
	})
	if errors.Is(err, errAlreadyCompleted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MongoStore) ApplyCheckIn(ctx context.Context, grant models.XPGrant, expectedVersion int64, streak int, at time.Time) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := s.identities.UpdateOne(sc,
			bson.M{"_id": grant.WalletAddress, "version": expectedVersion},
			bson.M{
				"$push": bson.M{"xpEventLog": grant.Event},
				"$inc":  bson.M{"xp": grant.Event.Amount, "version": 1},
				"$set":  bson.M{"checkInStreak": streak, "lastCheckInAt": at, "updatedAt": at},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return s.missOrConflict(sc, grant.WalletAddress, ErrVersionConflict)
		}
		return s.creditReferral(sc, grant.Referral)
	})
}

func (s *MongoStore) ApplyXPAdjustment(ctx context.Context, wallet string, event models.XPEvent) (*models.Identity, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutEventLog)

	var identity models.Identity
	err := s.identities.FindOneAndUpdate(ctx,
		bson.M{"_id": wallet, "xp": bson.M{"$gte": -event.Amount}},
		bson.M{
			"$push": bson.M{"xpEventLog": event},
			"$inc":  bson.M{"xp": event.Amount, "version": 1},
			"$set":  bson.M{"updatedAt": event.CreatedAt},
		},
		opts,
	).Decode(&identity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missOrConflict(ctx, wallet, ErrNegativeXP)
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (s *MongoStore) SetDisplayName(ctx context.Context, wallet, name, key string) error {
	res, err := s.identities.UpdateOne(ctx,
		bson.M{"_id": wallet},
		bson.M{
			"$set": bson.M{"displayName": name, "displayNameKey": key},
			"$inc": bson.M{"version": 1},
		},
	)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateDisplayName
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetRewardBoost(ctx context.Context, wallet string, owns bool, checkedAt time.Time) error {
	res, err := s.identities.UpdateOne(ctx,
		bson.M{"_id": wallet},
		bson.M{
			"$set": bson.M{"ownsRewardBoostAsset": owns, "boostCheckedAt": checkedAt},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListXPEvents(ctx context.Context, wallet string, offset, limit int) ([]models.XPEvent, int64, error) {
	cur, err := s.identities.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": wallet}}},
		{{Key: "$project", Value: bson.M{"n": bson.M{"$size": bson.M{"$ifNull": bson.A{"$xpEventLog", bson.A{}}}}}}},
	})
	if err != nil {
		return nil, 0, err
	}
	var sizes []struct {
		N int64 `bson:"n"`
	}
	if err := cur.All(ctx, &sizes); err != nil {
		return nil, 0, err
	}
	if len(sizes) == 0 {
		return []models.XPEvent{}, 0, nil
	}
	total := sizes[0].N

	// the log is stored oldest first; page newest first
	end := total - int64(offset)
	start := end - int64(limit)
	if start < 0 {
		start = 0
	}
	if end <= start {
		return []models.XPEvent{}, total, nil
	}

	var doc identityDocument
	err = s.identities.FindOne(ctx,
		bson.M{"_id": wallet},
		options.FindOne().SetProjection(bson.M{
			"xpEventLog": bson.M{"$slice": bson.A{start, end - start}},
		}),
	).Decode(&doc)
	if err != nil {
		return nil, 0, err
	}

	events := make([]models.XPEvent, 0, len(doc.XPEventLog))
	for i := len(doc.XPEventLog) - 1; i >= 0; i-- {
		events = append(events, doc.XPEventLog[i])
	}
	return events, total, nil
}

func (s *MongoStore) TopByXP(ctx context.Context, limit int) ([]models.Identity, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "xp", Value: -1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"xpEventLog": 0, "completedQuestIds": 0})

	cur, err := s.identities.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var identities []models.Identity
	if err := cur.All(ctx, &identities); err != nil {
		return nil, err
	}
	return identities, nil
}

func (s *MongoStore) ListWallets(ctx context.Context, after string, limit int) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 1})

	cur, err := s.identities.Find(ctx, bson.M{"_id": bson.M{"$gt": after}}, opts)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	wallets := make([]string, 0, len(rows))
	for _, r := range rows {
		wallets = append(wallets, r.ID)
	}
	return wallets, nil
}

func (s *MongoStore) SaveChallenge(ctx context.Context, challenge *models.Challenge) error {
	_, err := s.challenges.InsertOne(ctx, challenge)
	return err
}

func (s *MongoStore) ConsumeChallenge(ctx context.Context, nonce, wallet string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.challenges.FindOneAndDelete(ctx, bson.M{"_id": nonce, "walletAddress": wallet}).Decode(&challenge)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (s *MongoStore) PurgeExpiredChallenges(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.challenges.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
