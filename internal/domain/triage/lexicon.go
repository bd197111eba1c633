package triage

// Keyword lexicons used by the safety engine. The lists are ordered:
// scans walk them front to back and report the first phrase found, so
// the matched keyword in an override reason is deterministic. All
// phrases are lowercase; matching case-folds the input first. The
// lists are never mutated at runtime and are safe for concurrent
// reads.

// emergencyKeywords force an unconditional emergency override. A match
// here is terminal: no other rule runs after it.
var emergencyKeywords = []string{
	// Cardiac
	"chest pain",
	"heart attack",
	"cardiac arrest",
	"heart pain",
	"crushing chest",

	// Respiratory
	"can't breathe",
	"cannot breathe",
	"difficulty breathing",
	"breathing difficulty",
	"shortness of breath",
	"choking",
	"suffocating",
	"not breathing",
	"stopped breathing",

	// Neurological
	"stroke",
	"seizure",
	"convulsion",
	"unconscious",
	"passed out",
	"fainted",
	"unresponsive",
	"sudden numbness",
	"face drooping",
	"slurred speech",
	"sudden confusion",
	"severe headache sudden",

	// Bleeding & Trauma
	"severe bleeding",
	"heavy bleeding",
	"won't stop bleeding",
	"bleeding heavily",
	"major bleeding",
	"lost a lot of blood",

	// Poisoning
	"overdose",
	"poisoning",
	"poisoned",
	"swallowed poison",
	"drug overdose",

	// Other Critical
	"suicidal",
	"suicide",
	"want to die",
	"kill myself",
	"severe allergic",
	"anaphylaxis",
	"anaphylactic",
	"can't swallow",
	"throat closing",
	"severe burn",
	"electrocution",
	"drowning",
	"near drowning",
}

// highRiskKeywords upgrade a low-risk assessment to medium.
var highRiskKeywords = []string{
	"high fever",
	"very high temperature",
	"blood in urine",
	"blood in stool",
	"coughing blood",
	"vomiting blood",
	"severe pain",
	"intense pain",
	"unbearable pain",
	"confusion",
	"disoriented",
	"vision loss",
	"sudden blindness",
	"severe headache",
	"worst headache",
	"abdominal pain severe",
	"swelling face",
	"swelling tongue",
	"difficulty swallowing",
}

// lowRiskKeywords document the self-care category. No override rule
// consumes them; they bound the vocabulary the other lists must not
// drift into.
var lowRiskKeywords = []string{
	"mild headache",
	"slight fever",
	"runny nose",
	"sneezing",
	"mild cough",
	"sore throat",
	"minor cut",
	"small bruise",
	"feeling tired",
	"mild nausea",
	"stomach upset",
	"mild rash",
	"dry skin",
	"minor ache",
}

// vulnerableSymptomKeywords is a deliberately narrow fourth list used
// only for the vulnerable-age rule (under 2 or over 80). It is kept
// separate from the main lexicons so the age rule's reach stays small.
var vulnerableSymptomKeywords = []string{
	"fever",
	"pain",
	"breathing",
	"vomiting",
}
