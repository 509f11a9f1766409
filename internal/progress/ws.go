package progress

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// オリジン検証はCORSミドルウェア側の設定に委ねる
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler は GET /api/progress/:subscriptionId のWebSocketハンドラーを返します。
// 接続中に発行された進捗イベントをJSONで送信します。接続前のイベントは受け取れません。
func Handler(hub *Hub, logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(c *gin.Context) {
		subscriptionID := strings.TrimSpace(c.Param("subscriptionId"))
		if subscriptionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "subscriptionId を指定してください。",
			})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Printf("websocket upgrade failed: %v", err)
			return
		}

		ch := hub.Subscribe(subscriptionID)
		defer hub.Unsubscribe(subscriptionID, ch)
		defer conn.Close()

		// クライアント切断の検知用。受信メッセージ自体は読み捨てる。
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}
}
