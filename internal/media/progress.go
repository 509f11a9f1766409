package media

// ProgressReporter は進捗更新用コールバックです。
// パイプラインは固定マイルストーンごとに、単調非減少のpercentで呼び出します。
type ProgressReporter func(stage string, percent int)

func reportProgress(cb ProgressReporter, stage string, percent int) {
	if cb == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	cb(stage, percent)
}
