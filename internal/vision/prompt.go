package vision

import "fmt"

// promptTemplate is the Extraction Prompt. Its only substitution point is
// the hosted image URL.
const promptTemplate = `You are an AI designed to extract measurements from floor plan images reliably and consistently.
Your task is to analyze the provided floor plan image and output the measurements of each area and wall in JSON format.

The floor plan image is available at: %s

Please follow these steps:
1. Use OCR (Optical Character Recognition) to read all text from the image.
2. Identify and extract the measurements for each labeled area or room.
3. Format and output only the extracted and estimated measurements into JSON,
with each area or room as a key and its corresponding measurements as the value.

Output the result in the following JSON format:

{
  "Room 1": "Measurement 1",
  "Room 2": "Measurement 2",
  ...
}

Make sure the measurements include all the areas and rooms labeled in the image.

Example Output:
{
  "Great Room": "19'-9\" x 12'-4\"",
  "Den": "8'-0\" x 4'-6\"",
  "Bath": "6'-10\" x 8'-8\"",
  "Bedroom": "12'-3\" x 10'-0\"",
  "Entry": "8'-4\" x 5'-0\"",
  "Walk-In Closet": "6'-0\" x 4'-0\"",
  "Shower": "3'-6\" x 3'-0\"",
  "W/D": "3'-0\" x 3'-0\""
}

Output only the JSON result.`

// BuildPrompt returns the Extraction Prompt for the image at imageURL.
func BuildPrompt(imageURL string) string {
	return fmt.Sprintf(promptTemplate, imageURL)
}
