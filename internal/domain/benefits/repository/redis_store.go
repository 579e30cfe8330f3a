package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"benefits_gateway/internal/domain/benefits/model"
	"benefits_gateway/internal/pkg/config"

	"github.com/redis/go-redis/v9"
)

// redisStore CacheStore 的 Redis 实现
//
// 行以 JSON 存储，分区成员关系以 Set 维护；行里的分区标记在读取时
// 根据 Set 成员关系回填。分区替换用 TxPipeline（MULTI/EXEC）保证
// 并发读只能看到替换前或替换后的快照。
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 创建 Redis 缓存存储
func NewRedisStore(client *redis.Client) CacheStore {
	prefix := "benefits:"
	if config.GlobalConfig.Server.Mode == "test" {
		prefix = "test:" + prefix
	}
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) promoKey(id int64) string {
	return s.prefix + "promo:" + strconv.FormatInt(id, 10)
}

func (s *redisStore) bookingKey(id int64) string {
	return s.prefix + "booking:" + strconv.FormatInt(id, 10)
}

func (s *redisStore) userBookingsKey(userID string) string {
	return s.prefix + "user_bookings:" + userID
}

func (s *redisStore) partitionKey(partition string) string {
	return s.prefix + "partition:" + partition
}

func (s *redisStore) bookingIndexKey() string {
	return s.prefix + "partition:" + PartitionBookings
}

func marshalRow(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cache marshal error: %w", err)
	}
	return string(data), nil
}

func (s *redisStore) UpsertPromotion(ctx context.Context, promo *model.CachedPromotion) error {
	// 不属于任何分区的行直接清除（孤儿清理策略）
	if !promo.IsFavorited && !promo.IsReserved {
		return s.DeletePromotionByID(ctx, promo.PromotionID)
	}

	row := *promo
	payload, err := marshalRow(&row)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.promoKey(promo.PromotionID), payload, 0)
	member := promo.PromotionID
	if promo.IsFavorited {
		pipe.SAdd(ctx, s.partitionKey(PartitionFavorites), member)
	} else {
		pipe.SRem(ctx, s.partitionKey(PartitionFavorites), member)
	}
	if promo.IsReserved {
		pipe.SAdd(ctx, s.partitionKey(PartitionReserved), member)
	} else {
		pipe.SRem(ctx, s.partitionKey(PartitionReserved), member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert promotion %d: %w", promo.PromotionID, err)
	}
	return nil
}

func (s *redisStore) GetPromotionByID(ctx context.Context, promotionID int64) (*model.CachedPromotion, error) {
	val, err := s.client.Get(ctx, s.promoKey(promotionID)).Result()
	if err == redis.Nil {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get promotion %d: %w", promotionID, err)
	}

	var promo model.CachedPromotion
	if err := json.Unmarshal([]byte(val), &promo); err != nil {
		return nil, fmt.Errorf("cache unmarshal error: %w", err)
	}

	// 分区标记以 Set 成员关系为准
	member := strconv.FormatInt(promotionID, 10)
	fav, err := s.client.SIsMember(ctx, s.partitionKey(PartitionFavorites), member).Result()
	if err != nil {
		return nil, fmt.Errorf("check favorites membership: %w", err)
	}
	res, err := s.client.SIsMember(ctx, s.partitionKey(PartitionReserved), member).Result()
	if err != nil {
		return nil, fmt.Errorf("check reserved membership: %w", err)
	}
	promo.IsFavorited = fav
	promo.IsReserved = res
	return &promo, nil
}

func (s *redisStore) DeletePromotionByID(ctx context.Context, promotionID int64) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.promoKey(promotionID))
	pipe.SRem(ctx, s.partitionKey(PartitionFavorites), promotionID)
	pipe.SRem(ctx, s.partitionKey(PartitionReserved), promotionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete promotion %d: %w", promotionID, err)
	}
	return nil
}

// partitionMembers 读取一个分区的所有促销 ID
func (s *redisStore) partitionMembers(ctx context.Context, partition string) ([]int64, error) {
	members, err := s.client.SMembers(ctx, s.partitionKey(partition)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s partition: %w", partition, err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *redisStore) deleteAllInPartition(ctx context.Context, partition, otherPartition string) error {
	ids, err := s.partitionMembers(ctx, partition)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		stillMember, err := s.client.SIsMember(ctx, s.partitionKey(otherPartition), strconv.FormatInt(id, 10)).Result()
		if err != nil {
			return fmt.Errorf("check %s membership: %w", otherPartition, err)
		}
		if !stillMember {
			pipe.Del(ctx, s.promoKey(id))
		}
	}
	pipe.Del(ctx, s.partitionKey(partition))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear %s partition: %w", partition, err)
	}
	return nil
}

func (s *redisStore) DeleteAllFavorited(ctx context.Context) error {
	return s.deleteAllInPartition(ctx, PartitionFavorites, PartitionReserved)
}

func (s *redisStore) DeleteAllReserved(ctx context.Context) error {
	return s.deleteAllInPartition(ctx, PartitionReserved, PartitionFavorites)
}

func (s *redisStore) queryPartition(ctx context.Context, partition, otherPartition string) ([]model.CachedPromotion, error) {
	ids, err := s.partitionMembers(ctx, partition)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.promoKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s rows: %w", partition, err)
	}

	promos := make([]model.CachedPromotion, 0, len(vals))
	for i, val := range vals {
		if val == nil {
			continue
		}
		var promo model.CachedPromotion
		if err := json.Unmarshal([]byte(val.(string)), &promo); err != nil {
			return nil, fmt.Errorf("cache unmarshal error: %w", err)
		}
		other, err := s.client.SIsMember(ctx, s.partitionKey(otherPartition), strconv.FormatInt(ids[i], 10)).Result()
		if err != nil {
			return nil, fmt.Errorf("check %s membership: %w", otherPartition, err)
		}
		if partition == PartitionFavorites {
			promo.IsFavorited = true
			promo.IsReserved = other
		} else {
			promo.IsReserved = true
			promo.IsFavorited = other
		}
		promos = append(promos, promo)
	}
	return promos, nil
}

func (s *redisStore) QueryFavorited(ctx context.Context) ([]model.CachedPromotion, error) {
	return s.queryPartition(ctx, PartitionFavorites, PartitionReserved)
}

func (s *redisStore) QueryReserved(ctx context.Context) ([]model.CachedPromotion, error) {
	return s.queryPartition(ctx, PartitionReserved, PartitionFavorites)
}

func (s *redisStore) replacePartition(ctx context.Context, partition, otherPartition string, promos []model.CachedPromotion) error {
	oldIDs, err := s.partitionMembers(ctx, partition)
	if err != nil {
		return err
	}

	fresh := make(map[int64]bool, len(promos))
	for _, p := range promos {
		fresh[p.PromotionID] = true
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.partitionKey(partition))
	for i := range promos {
		row := promos[i]
		payload, err := marshalRow(&row)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.promoKey(row.PromotionID), payload, 0)
		pipe.SAdd(ctx, s.partitionKey(partition), row.PromotionID)
	}
	// 被分区替换挤出且不属于另一个分区的行清除掉
	for _, id := range oldIDs {
		if fresh[id] {
			continue
		}
		other, err := s.client.SIsMember(ctx, s.partitionKey(otherPartition), strconv.FormatInt(id, 10)).Result()
		if err != nil {
			return fmt.Errorf("check %s membership: %w", otherPartition, err)
		}
		if !other {
			pipe.Del(ctx, s.promoKey(id))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace %s partition: %w", partition, err)
	}
	return nil
}

func (s *redisStore) ReplaceFavorited(ctx context.Context, promos []model.CachedPromotion) error {
	return s.replacePartition(ctx, PartitionFavorites, PartitionReserved, promos)
}

func (s *redisStore) ReplaceReserved(ctx context.Context, promos []model.CachedPromotion) error {
	return s.replacePartition(ctx, PartitionReserved, PartitionFavorites, promos)
}

func (s *redisStore) writeBooking(ctx context.Context, booking *model.CachedBooking) error {
	payload, err := marshalRow(booking)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.bookingKey(booking.BookingID), payload, 0)
	pipe.SAdd(ctx, s.userBookingsKey(booking.UserID), booking.BookingID)
	pipe.SAdd(ctx, s.bookingIndexKey(), booking.BookingID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write booking %d: %w", booking.BookingID, err)
	}
	return nil
}

func (s *redisStore) UpsertBooking(ctx context.Context, booking *model.CachedBooking) error {
	return s.writeBooking(ctx, booking)
}

func (s *redisStore) UpdateBooking(ctx context.Context, booking *model.CachedBooking) error {
	return s.writeBooking(ctx, booking)
}

func (s *redisStore) userBookingIDs(ctx context.Context, userID string) ([]int64, error) {
	members, err := s.client.SMembers(ctx, s.userBookingsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read bookings of user %s: %w", userID, err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *redisStore) DeleteAllBookingsForUser(ctx context.Context, userID string) error {
	ids, err := s.userBookingIDs(ctx, userID)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.bookingKey(id))
		pipe.SRem(ctx, s.bookingIndexKey(), id)
	}
	pipe.Del(ctx, s.userBookingsKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete bookings of user %s: %w", userID, err)
	}
	return nil
}

func (s *redisStore) QueryBookingsForUser(ctx context.Context, userID string) ([]model.CachedBooking, error) {
	ids, err := s.userBookingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.bookingKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read bookings of user %s: %w", userID, err)
	}

	bookings := make([]model.CachedBooking, 0, len(vals))
	for _, val := range vals {
		if val == nil {
			continue
		}
		var booking model.CachedBooking
		if err := json.Unmarshal([]byte(val.(string)), &booking); err != nil {
			return nil, fmt.Errorf("cache unmarshal error: %w", err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

func (s *redisStore) QueryBookingByID(ctx context.Context, bookingID int64) (*model.CachedBooking, error) {
	val, err := s.client.Get(ctx, s.bookingKey(bookingID)).Result()
	if err == redis.Nil {
		return nil, ErrRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", bookingID, err)
	}
	var booking model.CachedBooking
	if err := json.Unmarshal([]byte(val), &booking); err != nil {
		return nil, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return &booking, nil
}

func (s *redisStore) ReplaceBookingsForUser(ctx context.Context, userID string, bookings []model.CachedBooking) error {
	oldIDs, err := s.userBookingIDs(ctx, userID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, id := range oldIDs {
		pipe.Del(ctx, s.bookingKey(id))
		pipe.SRem(ctx, s.bookingIndexKey(), id)
	}
	pipe.Del(ctx, s.userBookingsKey(userID))
	for i := range bookings {
		row := bookings[i]
		payload, err := marshalRow(&row)
		if err != nil {
			return err
		}
		pipe.Set(ctx, s.bookingKey(row.BookingID), payload, 0)
		pipe.SAdd(ctx, s.userBookingsKey(userID), row.BookingID)
		pipe.SAdd(ctx, s.bookingIndexKey(), row.BookingID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace bookings of user %s: %w", userID, err)
	}
	return nil
}

func (s *redisStore) CountFavorited(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, s.partitionKey(PartitionFavorites)).Result()
}

func (s *redisStore) CountReserved(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, s.partitionKey(PartitionReserved)).Result()
}

func (s *redisStore) CountBookings(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, s.bookingIndexKey()).Result()
}

func (s *redisStore) DeleteAll(ctx context.Context) error {
	keys, err := s.client.Keys(ctx, s.prefix+"*").Result()
	if err != nil {
		return fmt.Errorf("list cache keys: %w", err)
	}
	if len(keys) > 0 {
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	return nil
}
