package repository

import (
	"logbook-service/internal/config"
	"logbook-service/internal/database/mongo"
	"logbook-service/internal/database/redis"
)

type Repositories struct {
	TemplateRepository           *TemplateRepository
	TemplateCache                *TemplateCache
	EntryRepository              *EntryRepository
	AccessGrantRepository        *AccessGrantRepository
	RoleRepository               *RoleRepository
	VerificationRecordRepository *VerificationRecordRepository
}

var Repositories_instance = &Repositories{
	TemplateRepository:           NewTemplateRepository(mongo.Mongo_Database),
	TemplateCache:                NewTemplateCache(redis.Redis_Client, config.ServiceConfig.Logbook.TemplateCacheTTL),
	EntryRepository:              NewEntryRepository(mongo.Mongo_Database),
	AccessGrantRepository:        NewAccessGrantRepository(mongo.Mongo_Database),
	RoleRepository:               NewRoleRepository(mongo.Mongo_Database),
	VerificationRecordRepository: NewVerificationRecordRepository(mongo.Mongo_Database),
}
