package pipeline

// InterventionsDirName is the fixed basename of the stage-local quarantine
// directory every stage that claims tasks from a working directory
// maintains, skipped during directory listing like any other non-task
// entry.
const InterventionsDirName = "interventions"
