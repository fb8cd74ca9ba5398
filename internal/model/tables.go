package model

const (
	RoomsTable = "Rooms"
)

type RoomItem struct {
	RoomID      string `dynamodbav:"roomId"`
	Name        string `dynamodbav:"name"`
	Description string `dynamodbav:"description,omitempty"`
	CreatedBy   string `dynamodbav:"createdBy"`
	CreatedAt   string `dynamodbav:"createdAt"`
	RoutingKey  string `dynamodbav:"routingKey"`
}
