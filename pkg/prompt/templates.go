package prompt

import "strings"

// DefaultFloorPlanPrompt は間取り図生成の既定プロンプトです。
const DefaultFloorPlanPrompt = "room layout, floor plan, interior layout, top-down, black white"

// FloorPlanTask は部屋写真を線画の間取り図に変換する編集指示を返します。
// 画像は部屋写真 1 枚のみ。
func FloorPlanTask(style string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		style = DefaultFloorPlanPrompt
	}
	return `Edit the provided room photograph into a top-down floor plan of the same room.
Keep the walls, openings and the positions and footprints of the furniture exactly where they are in the photo; do not invent or drop anything.
Render it as a clean line drawing with no shading or perspective.
Style: ` + style
}

// InsertTask は説明文ベースの配置指示です。画像順は [家具, 部屋写真]。
const InsertTask = `You are an interior designer and photo compositor.
The first image is a single furniture or decor item. The second image is a photograph of a room.
Place the item from the first image into the room photograph at the location given below.
Keep the camera, the framing and every other part of the room unchanged.
Match the room's lighting, perspective and scale, give the item a natural contact shadow, and blend it so it looks photographed in place.
Return the edited room photograph.`

// DirectInsertTask はマーカー付き間取り図を直接渡す配置指示です。
// 画像順は [家具, 赤い点付き間取り図, 部屋写真]。
const DirectInsertTask = `You are an interior designer and photo compositor with strong spatial reasoning.
The first image is a single furniture or decor item.
The second image is a top-down floor plan of a room with a RED DOT marking where the item must go.
The third image is the photograph of that room.
Work out where the red dot on the plan falls in the photograph, and place the item there.
The red dot is the primary placement guide; translate it into the photo's perspective.
Keep everything else in the room unchanged, match lighting and scale, and add natural shadows.
Do not draw the red dot or any part of the floor plan in the output.
Return the edited room photograph.`

// RemoveTask は指定位置の家具を取り除く指示です。画像は部屋写真 1 枚のみ。
const RemoveTask = `You are a photo editor working on interior photographs.
The image is a photograph of a room.
Remove the piece of furniture or object at the location given below and fill the space with what would realistically be behind it (floor, wall, skirting, window).
Match the surrounding texture, lighting and perspective so the item looks like it was never there.
Do not add any new objects and do not change anything else in the room.
Return the edited room photograph.`

// DescribeLocation は赤い点の位置を自然文に変換させる固定指示です。
// 画像順は [元の部屋写真, 赤い点付き画像]。
const DescribeLocation = `You are an expert in spatial reasoning and interior design.
The first image is a photograph of a room.
The second image shows the same room, either as a top-down floor plan or as the same photograph, with a RED DOT marking one spot.
Describe where the red dot's spot is as it appears in the photograph (the first image).
Use the camera's frame of reference: left or right side of the frame, centre, foreground, mid-ground or background.
Anchor the spot to visible furniture, walls or windows ("just left of the sofa, against the back wall").
Never give pixel coordinates or compass directions, and never mention the dot, the plan or the second image.
Answer with one sentence or a short paragraph describing the location only.`
