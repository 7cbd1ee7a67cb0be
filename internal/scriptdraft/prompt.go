package scriptdraft

// SystemPrompt frames every drafting request. Keep edits here so the CLI and
// tests stay in sync.
const SystemPrompt = `You write narration scripts for recorded webinars.

Rules:

- Write plain spoken prose. No headings, bullet markers, stage directions, or markdown.

- Cover the slides in order and give each one a short paragraph.

- Speak to the stated audience and keep the pace conversational.

- Stay close to the requested word count.

Respond ONLY with the script text.`
