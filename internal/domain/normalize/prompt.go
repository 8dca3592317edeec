package normalize

// SystemPrompt instructs the model to answer with the five record fields.
const SystemPrompt = `Extract the event details from the text in JSON format with these fields:
    - title (string)
    - datetime (string in ISO format if possible, otherwise a readable date)
    - location (an object with name and optional address)
    - description (string)
    - type (either "social", "business", or "entertainment")`

// DefaultMaxTokens caps the model's answer.
const DefaultMaxTokens = 500
