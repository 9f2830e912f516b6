// Package scheduler runs named periodic jobs on robfig/cron.
//
// Schedules are cron expressions ("*/10 * * * *", "@hourly") or intervals
// ("15m", "01:30", "every:90s"); see ParseSchedule. A job that is still
// running when its next tick fires is skipped, not stacked.
package scheduler
