// Package prompt は生成モデルへ渡すテキストプロンプトを組み立てます。
package prompt

import "strings"

const (
	locationLabel     = "Location: "
	instructionsLabel = "Additional instructions: "
	feedbackLabel     = "IMPORTANT corrections from previous attempts: "
)

// Context はプロンプトの構成要素です。
// 連結順は Task, Location, Instructions, Feedback で固定され、空の要素は出力されません。
type Context struct {
	Task         string
	Location     string
	Instructions string
	Feedback     string
}

// String は各要素を空行区切りで連結します。
func (c Context) String() string {
	sections := make([]string, 0, 4)
	if s := strings.TrimSpace(c.Task); s != "" {
		sections = append(sections, s)
	}
	if s := strings.TrimSpace(c.Location); s != "" {
		sections = append(sections, locationLabel+s)
	}
	if s := strings.TrimSpace(c.Instructions); s != "" {
		sections = append(sections, instructionsLabel+s)
	}
	if s := strings.TrimSpace(c.Feedback); s != "" {
		sections = append(sections, feedbackLabel+s)
	}
	return strings.Join(sections, "\n\n")
}

// Build はタスク、位置説明、ユーザー指示の順でプロンプトを組み立てます。
// location や userInstructions が空の場合、そのラベルごと省きます。
func Build(task, userInstructions, location string) string {
	return Context{
		Task:         task,
		Location:     location,
		Instructions: userInstructions,
	}.String()
}

// JoinFeedback は複数回分の修正指示を 1 つにまとめます。
func JoinFeedback(items []string) string {
	kept := make([]string, 0, len(items))
	for _, f := range items {
		if f = strings.TrimSpace(f); f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
