package llm

// TopicSystemPrompt instructs the oracle to return the topic tree as a bare JSON array.
const TopicSystemPrompt = `Extract exactly 5 main research topics and their subtopics from the text.
Return a JSON array where each main topic has a "topic", "importance" and a "subtopics" field.
Each "subtopics" field must be an array of subtopic objects with "topic" and "importance".
Importance is an integer from 1 (peripheral) to 10 (central).
Keep topics short and precise, but long enough to be meaningful. Each topic should be relevant to the core argument of the paper, not just a specific section. Each main topic should have up to 3 subtopics.
Respond with the JSON array only, without commentary.
Example format:
[
  {
    "topic": "neural networks",
    "importance": 9,
    "subtopics": [
      {"topic": "convolutional neural networks in image processing", "importance": 8},
      {"topic": "recurrent neural networks in speech recognition", "importance": 7}
    ]
  },
  {
    "topic": "computer vision for autonomous driving",
    "importance": 7,
    "subtopics": [
      {"topic": "image classification for object detection", "importance": 6}
    ]
  }
]`
