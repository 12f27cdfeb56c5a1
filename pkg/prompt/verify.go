package prompt

import (
	"strings"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
)

const (
	verdictPrefix  = "VERDICT:"
	feedbackPrefix = "FEEDBACK:"
)

func instructionsBlock(instructions string) string {
	if s := strings.TrimSpace(instructions); s != "" {
		return "\nADDITIONAL INSTRUCTIONS: " + s
	}
	return ""
}

// Review はレビュー担当に観察だけを書かせるプロンプトです。
// 画像順は挿入時 [元写真, 生成画像, 家具]、削除時 [元写真, 生成画像]。
func Review(target domain.VerifyTarget, placement, instructions string) string {
	var b strings.Builder
	if target == domain.TargetRemoval {
		b.WriteString(`You are reviewing an interior photo edit.
The first image is the original room photograph. The second image is the edited photograph, where one item should have been removed.
ITEM LOCATION: ` + placement)
		b.WriteString(instructionsBlock(instructions))
		b.WriteString(`
Compare the two images. Is the item at that location gone? Does the vacated area look natural? Is the rest of the room unchanged? Are there smudges, patches or other artefacts?`)
	} else {
		b.WriteString(`You are reviewing an interior photo composite.
The first image is the original room photograph. The second image is the composite, where a new item should have been placed. The third image is the item.
INTENDED PLACEMENT: ` + placement)
		b.WriteString(instructionsBlock(instructions))
		b.WriteString(`
Look at the composite. Is a new item visible at or near the intended placement, and does it resemble the item image? Are its scale, perspective, lighting and grounding plausible? Are the additional instructions, if any, reflected? Are there artefacts or distortions?`)
	}
	b.WriteString(`
Reply with a short factual assessment of 3 to 5 sentences. Do not say whether it passes or fails.`)
	return b.String()
}

// Examine は審査担当に PASS/FAIL を判定させるプロンプトです。画像順は Review と同じ。
func Examine(target domain.VerifyTarget, placement, instructions, review string) string {
	var b strings.Builder
	if target == domain.TargetRemoval {
		b.WriteString(`You are a strict examiner for an interior item-removal system.
The first image is the original room photograph. The second image is the edited photograph.
ITEM LOCATION (what should have been removed): ` + placement)
		b.WriteString(instructionsBlock(instructions))
		b.WriteString(`
REVIEWER'S OBSERVATIONS (secondary reference, trust your own eyes first):
` + review + `
PASS only if the item is clearly gone, the infill looks natural and nothing else changed. Otherwise FAIL.`)
	} else {
		b.WriteString(`You are a strict examiner for an interior item-placement system.
The first image is the original room photograph. The second image is the composite. The third image is the item that should have been inserted.
INTENDED PLACEMENT: ` + placement)
		b.WriteString(instructionsBlock(instructions))
		b.WriteString(`
REVIEWER'S OBSERVATIONS (secondary reference, trust your own eyes first):
` + review + `
PASS only if the item is recognisably present, roughly at the intended placement, looks physically plausible and follows the additional instructions. Otherwise FAIL.`)
	}
	b.WriteString(`
Answer in exactly two lines:
VERDICT: PASS or VERDICT: FAIL
FEEDBACK: one sentence; on FAIL, an actionable correction phrased as an instruction for the image generator.`)
	return b.String()
}

// ParseVerdict は審査結果のテキストを解釈します。VERDICT 行が無い場合は不合格扱いです。
func ParseVerdict(raw string) domain.Verdict {
	var v domain.Verdict
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, verdictPrefix):
			v.Passed = strings.Trim(upper[len(verdictPrefix):], " *") == "PASS"
		case strings.HasPrefix(upper, feedbackPrefix) && v.Feedback == "":
			v.Feedback = strings.Trim(line[len(feedbackPrefix):], " *")
		}
	}
	return v
}
