package events

// Event enumerates pub/sub topics inside the simulator.
type Event string

const (
	EventPriceTick     Event = "price.tick"
	EventBotStarted    Event = "bot.started"
	EventBotStopped    Event = "bot.stopped"
	EventBotDecision   Event = "bot.decision"
	EventTradeExecuted Event = "trade.executed"
)
