package session

import (
	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Rotate は現在のリクエストに紐づくセッションをストアから破棄し、
// 値を空にして次回の保存時に新しいIDが採番される状態にします。
// ログイン成功時に呼び、ログイン前のクッキーを引き継がないようにします。
//
// sessions.Default(c) と同じ gorilla のセッションを操作するため、
// 呼び出し後は通常どおり sessions.Default(c) で値を設定して Save してください。
func Rotate(c *gin.Context, store ginsessions.Store, name string) error {
	sess, err := store.Get(c.Request, name)
	if sess == nil {
		return err
	}

	if sess.ID != "" {
		opts := *sess.Options
		sess.Options.MaxAge = -1
		if err := store.Save(c.Request, c.Writer, sess); err != nil {
			sess.Options = &opts
			return err
		}
		sess.Options = &opts
	}

	sess.ID = ""
	sess.IsNew = true
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	return nil
}
