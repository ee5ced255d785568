package kafka

// Topics для Kafka
const (
	TopicShopEvents      = "dailygoods.shop.events"
	TopicDeadLetterQueue = "dailygoods.dlq" // Dead Letter Queue для неопубликованных событий
)
