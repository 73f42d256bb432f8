package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trogers1052/portfolio-service/internal/models"
	"github.com/trogers1052/portfolio-service/internal/storage"
)

type positionDoc struct {
	UserID    primitive.ObjectID   `bson:"user_id"`
	Ticker    string               `bson:"ticker"`
	Quantity  primitive.Decimal128 `bson:"quantity"`
	CostPrice primitive.Decimal128 `bson:"cost_price"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

type orderDoc struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	UserID    primitive.ObjectID   `bson:"user_id"`
	Ticker    string               `bson:"ticker"`
	Action    string               `bson:"action"`
	Quantity  primitive.Decimal128 `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
	CreatedAt time.Time            `bson:"created_at"`
}

func (d *positionDoc) toModel() (models.Position, error) {
	qty, err := fromDecimal128(d.Quantity)
	if err != nil {
		return models.Position{}, err
	}
	cost, err := fromDecimal128(d.CostPrice)
	if err != nil {
		return models.Position{}, err
	}
	return models.Position{
		UserID:    d.UserID.Hex(),
		Ticker:    d.Ticker,
		Quantity:  qty,
		CostPrice: cost,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func (d *orderDoc) toModel() (models.Order, error) {
	qty, err := fromDecimal128(d.Quantity)
	if err != nil {
		return models.Order{}, err
	}
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return models.Order{}, err
	}
	return models.Order{
		ID:        d.ID.Hex(),
		UserID:    d.UserID.Hex(),
		Ticker:    d.Ticker,
		Action:    d.Action,
		Quantity:  qty,
		Price:     price,
		CreatedAt: d.CreatedAt,
	}, nil
}

// GetPosition retrieves the position document for (userID, ticker).
func (s *Store) GetPosition(ctx context.Context, userID, ticker string) (*models.Position, error) {
	uid, err := parseObjectID(userID)
	if err != nil {
		return nil, err
	}

	var doc positionDoc
	err = s.portfolio.FindOne(ctx, bson.M{"user_id": uid, "ticker": ticker}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	p, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPositions retrieves all position documents for a user, ordered by ticker.
func (s *Store) GetPositions(ctx context.Context, userID string) ([]models.Position, error) {
	uid, err := parseObjectID(userID)
	if err != nil {
		return nil, err
	}

	cursor, err := s.portfolio.Find(ctx, bson.M{"user_id": uid},
		options.Find().SetSort(bson.D{{Key: "ticker", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	defer cursor.Close(ctx)

	positions := []models.Position{}
	for cursor.Next(ctx) {
		var doc positionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode position: %w", err)
		}
		p, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	return positions, nil
}

// GetOrders retrieves the user's order documents in chronological order.
func (s *Store) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	uid, err := parseObjectID(userID)
	if err != nil {
		return nil, err
	}

	cursor, err := s.orders.Find(ctx, bson.M{"user_id": uid},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	for cursor.Next(ctx) {
		var doc orderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		o, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	return orders, nil
}

// ExecuteOrder appends the order document, then writes the recomputed position.
// When the position write fails the inserted order is deleted again so neither
// artifact survives alone. A zero-quantity position is removed.
func (s *Store) ExecuteOrder(ctx context.Context, pos *models.Position, order *models.Order) (string, error) {
	uid, err := parseObjectID(pos.UserID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()

	qty, err := toDecimal128(order.Quantity)
	if err != nil {
		return "", err
	}
	price, err := toDecimal128(order.Price)
	if err != nil {
		return "", err
	}
	posQty, err := toDecimal128(pos.Quantity)
	if err != nil {
		return "", err
	}
	posCost, err := toDecimal128(pos.CostPrice)
	if err != nil {
		return "", err
	}

	res, err := s.orders.InsertOne(ctx, orderDoc{
		UserID:    uid,
		Ticker:    order.Ticker,
		Action:    order.Action,
		Quantity:  qty,
		Price:     price,
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert order: %w", err)
	}
	orderID := res.InsertedID.(primitive.ObjectID)

	filter := bson.M{"user_id": uid, "ticker": pos.Ticker}
	if pos.Quantity.IsZero() {
		_, err = s.portfolio.DeleteOne(ctx, filter)
	} else {
		update := bson.M{"$set": bson.M{
			"quantity":   posQty,
			"cost_price": posCost,
			"updated_at": now,
		}}
		_, err = s.portfolio.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	}
	if err != nil {
		// Compensate: the order must not outlive a failed position write.
		if _, delErr := s.orders.DeleteOne(ctx, bson.M{"_id": orderID}); delErr != nil {
			slog.Error("failed to roll back order after position write failure",
				slog.String("order_id", orderID.Hex()),
				slog.String("err", delErr.Error()))
		}
		return "", fmt.Errorf("failed to write position: %w", err)
	}

	order.ID = orderID.Hex()
	order.CreatedAt = now
	pos.UpdatedAt = now
	return order.ID, nil
}
