package extract

const schemaPrompt = `You are a product research expert.

A shopper is searching for: "%s"
Product category: "%s"

Choose the 5 features a buyer in this category cares about most.

Rules:
- Keys are lower snake_case (e.g. "sound_quality", "battery_life")
- Be specific ("noise_cancellation", not "sound")
- Skip features that do not apply to this category

Examples:
- Headphones: sound_quality, bass, comfort, noise_cancellation, battery_life
- Smartphones: camera, battery, display, performance, value_for_money
- Laptops: performance, battery_life, display, build_quality, value_for_money

Return ONLY a JSON object:
{"features": ["key_1", "key_2", "key_3", "key_4", "key_5"], "feature_labels": {"key_1": "Human Readable Label"}}`

const entityPrompt = `You are a product discovery engine reading review content.

List every product named in the passages below that is relevant to: "%s"

Rules:
- Return ONLY a JSON array of product names
- Use the full canonical name including the brand
- Merge spelling variants of the same product into one name

Example: ["Sony WF-1000XM5", "OnePlus Buds 3"]

Passages:
%s`

const analysisPrompt = `You are a product analyst. Analyze %s using only the passages below.

Evidence rules:
- Every quote must be copied word for word from a passage
- Never paraphrase a quote
- Cite the Source, Type, URL and Timestamp given in the passage header
- When evidence is weak, score lower and cite less

Features to score:
%s

For each feature give a score out of 10, a one-line summary and a list of evidence objects.
Also give the price as an integer if mentioned (null otherwise), an overall_score out of 10 and a one-sentence verdict.

Return ONLY a JSON object:
{"name": "%s", "price": <int or null>, "overall_score": <float>, "verdict": "<string>",
 "features": {"<feature_key>": {"score": <float>, "summary": "<string>",
  "evidence": [{"quote": "<exact words>", "source_name": "<string>", "source_type": "<article or video>", "url": "<string>", "timestamp": "<string or null>"}]}}}

Passages about %s:
%s`

const followupPrompt = `You are a product advisor. A shopper already has a ranked list of products and asks a follow-up question.

Question: "%s"

Product data:
%s

Answer concisely. Refer to specific products and their scores.`
